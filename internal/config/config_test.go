// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"httpAddr": ":9090",
		"device": {"mock": true},
		"store": {"path": "/tmp/test.db"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.True(t, cfg.Device.Mock)
	require.Equal(t, "/tmp/test.db", cfg.Store.Path)

	// Untouched sections keep their defaults.
	require.Equal(t, 30, cfg.Store.RetentionDays)
	require.Equal(t, 100, cfg.CommandQueue.Capacity)
	require.Equal(t, meshmodel.PolicyReject, cfg.CommandQueue.FullQueuePolicy)
	require.Equal(t, 5*time.Second, cfg.Debounce.Window())
	require.Equal(t, 3, cfg.Webhooks.RetryCount)
	require.Equal(t, time.Hour, cfg.Store.CleanupInterval())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"httpAddr": ":8080",
		"device": {"mock": false, "serialPort": "/dev/ttyUSB0", "baudRate": 115200},
		"store": {"path": "/tmp/x.db", "retentionDays": 7, "cleanupIntervalHours": 0.5},
		"commandQueue": {"capacity": 10, "fullQueuePolicy": "drop_oldest"},
		"rateLimit": {"enabled": true, "rate": 0.02, "burst": 2},
		"debounce": {"enabled": false, "windowSeconds": 2.5}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", cfg.Device.SerialPort)
	require.Equal(t, 7, cfg.Store.RetentionDays)
	require.Equal(t, 30*time.Minute, cfg.Store.CleanupInterval())
	require.Equal(t, meshmodel.PolicyDropOldest, cfg.CommandQueue.FullQueuePolicy)
	require.Equal(t, 0.02, cfg.RateLimit.Rate)
	require.False(t, cfg.Debounce.Enabled)
	require.Equal(t, 2500*time.Millisecond, cfg.Debounce.Window())
}

func TestLoadResolvesEnvIndirection(t *testing.T) {
	t.Setenv("MESHBRIDGE_TEST_SERIAL", "/dev/ttyACM3")
	path := writeConfig(t, `{
		"httpAddr": ":8080",
		"device": {"mock": false, "serialPort": "env:MESHBRIDGE_TEST_SERIAL"},
		"store": {"path": "/tmp/x.db"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM3", cfg.Device.SerialPort)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	for name, content := range map[string]string{
		"missing required": `{"httpAddr": ":8080"}`,
		"unknown field":    `{"httpAddr": ":8080", "device": {"mock": true}, "store": {"path": "x"}, "bogus": 1}`,
		"bad policy":       `{"httpAddr": ":8080", "device": {"mock": true}, "store": {"path": "x"}, "commandQueue": {"fullQueuePolicy": "panic"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
