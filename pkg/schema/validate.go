// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema validates configuration files and bulk-tag import files
// against embedded JSON Schemas.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Kind int

const (
	Config Kind = iota + 1
	TagImport
)

//go:embed schemas/*
var schemaFiles embed.FS

func load(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = load
}

func compile(k Kind) (*jsonschema.Schema, error) {
	switch k {
	case Config:
		return jsonschema.Compile("embedFS://schemas/config.schema.json")
	case TagImport:
		return jsonschema.Compile("embedFS://schemas/tag-import.schema.json")
	default:
		return nil, fmt.Errorf("schema: unknown kind %d", k)
	}
}

// Validate decodes r as JSON and validates it against the schema for k.
func Validate(k Kind, r io.Reader) error {
	s, err := compile(k)
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("schema: decode: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema: validate: %w", err)
	}

	return nil
}
