// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the program's single configuration
// file. Components never read environment or CLI flags directly; they are
// handed a *Keys built here.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/schema"
)

type DeviceConfig struct {
	Mock         bool   `json:"mock"`
	SerialPort   string `json:"serialPort"`
	BaudRate     int    `json:"baudRate"`
	MockScenario string `json:"mockScenario"`
}

type StoreConfig struct {
	Path                 string  `json:"path"`
	RetentionDays        int     `json:"retentionDays"`
	CleanupIntervalHours float64 `json:"cleanupIntervalHours"`
}

type CommandQueueConfig struct {
	Capacity        int                      `json:"capacity"`
	FullQueuePolicy meshmodel.FullQueuePolicy `json:"fullQueuePolicy"`
}

type RateLimitConfig struct {
	Enabled bool    `json:"enabled"`
	Rate    float64 `json:"rate"`
	Burst   float64 `json:"burst"`
}

type DebounceConfig struct {
	Enabled               bool     `json:"enabled"`
	WindowSeconds         float64  `json:"windowSeconds"`
	CacheCapacity         int      `json:"cacheCapacity"`
	DebouncedCommandTypes []string `json:"debouncedCommandTypes"`
}

type WebhookConfig struct {
	ContactMessageURL      string  `json:"contactMessageURL"`
	ContactMessageJSONPath string  `json:"contactMessageJSONPath"`
	ChannelMessageURL      string  `json:"channelMessageURL"`
	ChannelMessageJSONPath string  `json:"channelMessageJSONPath"`
	AdvertisementURL       string  `json:"advertisementURL"`
	AdvertisementJSONPath  string  `json:"advertisementJSONPath"`
	TimeoutSeconds         float64 `json:"timeoutSeconds"`
	RetryCount             int     `json:"retryCount"`
}

// Keys is the fully resolved, immutable configuration passed to the
// supervisor. Nothing downstream mutates it.
type Keys struct {
	HTTPAddr         string             `json:"httpAddr"`
	LogLevel         string             `json:"logLevel"`
	Device           DeviceConfig       `json:"device"`
	Store            StoreConfig        `json:"store"`
	CommandQueue     CommandQueueConfig `json:"commandQueue"`
	RateLimit        RateLimitConfig    `json:"rateLimit"`
	Debounce         DebounceConfig     `json:"debounce"`
	Webhooks         WebhookConfig      `json:"webhooks"`
	EventLogDenyList []string           `json:"eventLogDenyList"`
}

func defaults() Keys {
	return Keys{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Store: StoreConfig{
			Path:                 "./var/meshbridge.db",
			RetentionDays:        30,
			CleanupIntervalHours: 1,
		},
		CommandQueue: CommandQueueConfig{
			Capacity:        100,
			FullQueuePolicy: meshmodel.PolicyReject,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    1.0,
			Burst:   5,
		},
		Debounce: DebounceConfig{
			Enabled:       true,
			WindowSeconds: 5,
			CacheCapacity: 1000,
			DebouncedCommandTypes: []string{
				string(meshmodel.CommandSendMessage),
				string(meshmodel.CommandSendChannelMessage),
				string(meshmodel.CommandSendAdvert),
			},
		},
		Webhooks: WebhookConfig{
			TimeoutSeconds: 5,
			RetryCount:     3,
		},
		EventLogDenyList: []string{
			meshmodel.EventSendConfirmed,
			meshmodel.EventStatistics,
			meshmodel.EventRaw,
		},
	}
}

// Load reads path, validates it against the embedded config schema,
// decodes it over the compiled-in defaults and resolves any `env:VAR`
// indirections.
func Load(path string) (*Keys, error) {
	k := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := schema.Validate(schema.Config, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("config: %s failed validation: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&k); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	k.Device.SerialPort = resolveEnv(k.Device.SerialPort)
	k.Store.Path = resolveEnv(k.Store.Path)
	k.Webhooks.ContactMessageURL = resolveEnv(k.Webhooks.ContactMessageURL)
	k.Webhooks.ChannelMessageURL = resolveEnv(k.Webhooks.ChannelMessageURL)
	k.Webhooks.AdvertisementURL = resolveEnv(k.Webhooks.AdvertisementURL)

	return &k, nil
}

// resolveEnv follows the `env:VARNAME` convention for values that
// should come from the environment rather than live in the config file.
func resolveEnv(v string) string {
	if rest, ok := strings.CutPrefix(v, "env:"); ok {
		return os.Getenv(rest)
	}
	return v
}

func (s StoreConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalHours * float64(time.Hour))
}

func (d DebounceConfig) Window() time.Duration {
	return time.Duration(d.WindowSeconds * float64(time.Second))
}

func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds * float64(time.Second))
}
