// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package importer loads user tag metadata from a JSON file into the
// store, validated against the embedded tag-import schema. Runs once at
// startup when the -import-tags flag is set, then the process exits.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/schema"
)

// tagRecord mirrors one entry of the import file.
type tagRecord struct {
	NodePublicKey string                 `json:"node_public_key"`
	Key           string                 `json:"key"`
	ValueType     meshmodel.TagValueType `json:"value_type"`
	Value         json.RawMessage        `json:"value"`
}

// HandleTagImport reads, validates and writes every record of the file at
// path. The whole file is validated before any write happens; a record
// that later fails its typed-value decode aborts the import with the
// records before it already committed (each upsert is its own
// transaction, matching how tags are written from the HTTP surface).
func HandleTagImport(store *repository.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("importer: read %s: %w", path, err)
	}

	if err := schema.Validate(schema.TagImport, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("importer: %s failed validation: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var records []tagRecord
	if err := dec.Decode(&records); err != nil {
		return fmt.Errorf("importer: decode %s: %w", path, err)
	}

	for i, rec := range records {
		tag := &meshmodel.NodeTag{
			NodePublicKey: strings.ToLower(rec.NodePublicKey),
			Key:           rec.Key,
			ValueType:     rec.ValueType,
		}
		if err := meshmodel.DecodeTagValue(tag, rec.Value); err != nil {
			return fmt.Errorf("importer: record %d (%s/%s): %w", i, rec.NodePublicKey, rec.Key, err)
		}
		if _, err := store.UpsertTag(tag); err != nil {
			return fmt.Errorf("importer: record %d (%s/%s): %w", i, rec.NodePublicKey, rec.Key, err)
		}
	}

	log.Infof("importer: imported %d tags from %s", len(records), path)
	return nil
}
