// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func setup(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tags.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportAllValueTypes(t *testing.T) {
	store := setup(t)
	keyA := strings.Repeat("0a", 32)
	keyB := strings.Repeat("0b", 32)

	path := writeImportFile(t, `[
		{"node_public_key": "`+keyA+`", "key": "owner", "value_type": "string", "value": "alice"},
		{"node_public_key": "`+keyA+`", "key": "height_m", "value_type": "number", "value": 12.5},
		{"node_public_key": "`+keyB+`", "key": "solar", "value_type": "boolean", "value": true},
		{"node_public_key": "`+keyB+`", "key": "location", "value_type": "coordinate", "value": {"latitude": 45.52, "longitude": -122.67}}
	]`)

	require.NoError(t, HandleTagImport(store, path))

	tags, err := store.ListTags(keyA)
	require.NoError(t, err)
	require.Len(t, tags, 2)

	loc, err := store.GetTag(keyB, "location")
	require.NoError(t, err)
	require.Equal(t, meshmodel.TagValueCoordinate, loc.ValueType)
	require.Equal(t, 45.52, *loc.Latitude)
	require.Nil(t, loc.ValueString)

	// Tag writes create the owning node lazily.
	_, err = store.GetNode(keyA)
	require.NoError(t, err)
}

func TestImportRejectsSchemaViolations(t *testing.T) {
	store := setup(t)

	for name, content := range map[string]string{
		"short key":      `[{"node_public_key": "0a0b", "key": "x", "value_type": "string", "value": "y"}]`,
		"bad value type": `[{"node_public_key": "` + strings.Repeat("0a", 32) + `", "key": "x", "value_type": "blob", "value": "y"}]`,
		"not an array":   `{"node_public_key": "x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			err := HandleTagImport(store, writeImportFile(t, content))
			require.Error(t, err)
		})
	}
}

func TestImportRejectsOutOfRangeCoordinate(t *testing.T) {
	store := setup(t)
	key := strings.Repeat("0c", 32)

	err := HandleTagImport(store, writeImportFile(t,
		`[{"node_public_key": "`+key+`", "key": "loc", "value_type": "coordinate", "value": {"latitude": 91, "longitude": 0}}]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "latitude")
}

func TestImportOverwritesExistingTag(t *testing.T) {
	store := setup(t)
	key := strings.Repeat("0d", 32)

	first := writeImportFile(t, `[{"node_public_key": "`+key+`", "key": "owner", "value_type": "string", "value": "alice"}]`)
	require.NoError(t, HandleTagImport(store, first))

	second := writeImportFile(t, `[{"node_public_key": "`+key+`", "key": "owner", "value_type": "string", "value": "bob"}]`)
	require.NoError(t, HandleTagImport(store, second))

	tag, err := store.GetTag(key, "owner")
	require.NoError(t, err)
	require.Equal(t, "bob", *tag.ValueString)

	tags, err := store.ListTags(key)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}
