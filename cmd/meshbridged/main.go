// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"os"

	"github.com/ipnet-mesh/meshbridge/internal/config"
	"github.com/ipnet-mesh/meshbridge/internal/importer"
	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/internal/runtimeEnv"
	"github.com/ipnet-mesh/meshbridge/internal/supervisor"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
)

func main() {
	var flagConfigFile, flagImportTags, flagLogLevel string
	var flagLogDateTime, flagMock bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Read the configuration from `config.json`")
	flag.StringVar(&flagImportTags, "import-tags", "", "Import node tags from `tags.json`, then exit")
	flag.StringVar(&flagLogLevel, "loglevel", "", "Overwrite the configured log level (debug, info, warn, err, crit)")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Add date and time to log messages")
	flag.BoolVar(&flagMock, "mock", false, "Use the mock device port regardless of the configured device")
	flag.Parse()

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		log.Fatalf("parsing './.env' file failed: %s", err.Error())
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		log.Fatal(err)
	}

	lvl := cfg.LogLevel
	if flagLogLevel != "" {
		lvl = flagLogLevel
	}
	log.SetLogLevel(lvl)
	log.SetLogDateTime(flagLogDateTime)

	if flagMock {
		cfg.Device.Mock = true
	}

	if flagImportTags != "" {
		store, err := repository.Open(cfg.Store.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		if err := importer.HandleTagImport(store, flagImportTags); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := supervisor.Run(cfg); err != nil {
		log.Fatal(err)
	}
}
