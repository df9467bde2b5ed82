// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package supervisor owns process lifecycle: it wires the store, device
// port, normalizer, webhook fanout, command pipeline and HTTP server
// together, starts them in dependency order, runs the periodic sweepers
// and tears everything down again on SIGINT/SIGTERM.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ipnet-mesh/meshbridge/internal/command"
	"github.com/ipnet-mesh/meshbridge/internal/config"
	"github.com/ipnet-mesh/meshbridge/internal/device"
	"github.com/ipnet-mesh/meshbridge/internal/httpapi"
	"github.com/ipnet-mesh/meshbridge/internal/normalizer"
	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/internal/runtimeEnv"
	"github.com/ipnet-mesh/meshbridge/internal/webhook"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
)

// shutdownGrace bounds how long teardown may take before the process
// exits regardless.
const shutdownGrace = 10 * time.Second

// debounceSweepInterval paces the debounce cache sweeper. It holds the
// debounce lock only briefly per sweep and runs on this fixed interval
// whatever the configured debounce window is.
const debounceSweepInterval = 30 * time.Second

// Run starts the whole bridge and blocks until a termination signal has
// been handled. Startup failures (store, device) are fatal and returned;
// everything after startup is supervised and survives single-event
// failures.
func Run(cfg *config.Keys) error {
	store, err := repository.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var port device.Port
	if cfg.Device.Mock {
		mockCfg := device.DefaultMockPortConfig()
		mockCfg.ScenarioName = cfg.Device.MockScenario
		port = device.NewMockPort(mockCfg)
	} else {
		port = device.NewSerialPort(cfg.Device.SerialPort, cfg.Device.BaudRate)
	}

	pipeline := command.NewPipeline(port, cfg.CommandQueue, cfg.RateLimit, cfg.Debounce)
	fanout := webhook.New(cfg.Webhooks)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(workerCtx)
	}()

	if err := port.Connect(context.Background()); err != nil {
		stopWorker()
		wg.Wait()
		return fmt.Errorf("supervisor: connect device: %w", err)
	}

	normCtx, stopNormalizer := context.WithCancel(context.Background())
	defer stopNormalizer()
	norm := normalizer.New(store, port, fanout, cfg.EventLogDenyList)
	events := port.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		norm.Run(normCtx, events)
	}()

	scheduler, err := startSweepers(cfg, store, pipeline)
	if err != nil {
		stopNormalizer()
		stopWorker()
		port.Disconnect()
		wg.Wait()
		return err
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: buildHandler(store, pipeline),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("supervisor: HTTP API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	runtimeEnv.SystemdNotifiy(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Infof("supervisor: received %s, shutting down", sig)
	case err := <-serverErr:
		log.Errorf("supervisor: HTTP server failed: %v", err)
	}

	runtimeEnv.SystemdNotifiy(false, "shutting down")

	// Reverse of startup: stop accepting commands, let the in-flight
	// command finish, stop the sweepers, release the device, quiesce
	// ingestion, close the store (deferred).
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("supervisor: HTTP shutdown: %v", err)
	}
	stopWorker()
	if err := scheduler.Shutdown(); err != nil {
		log.Warnf("supervisor: scheduler shutdown: %v", err)
	}
	if err := port.Disconnect(); err != nil {
		log.Warnf("supervisor: device disconnect: %v", err)
	}
	stopNormalizer()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("supervisor: shutdown grace period exceeded")
	}

	log.Info("supervisor: bye")
	return nil
}

// startSweepers registers the retention and debounce sweeps with a gocron
// scheduler and starts it.
func startSweepers(cfg *config.Keys, store *repository.Store, pipeline *command.Pipeline) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("supervisor: create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Store.CleanupInterval()),
		gocron.NewTask(func() {
			if _, err := store.SweepRetention(context.Background(), cfg.Store.RetentionDays); err != nil {
				log.Errorf("supervisor: retention sweep: %v", err)
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("supervisor: register retention sweep: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(debounceSweepInterval),
		gocron.NewTask(pipeline.SweepDebounce))
	if err != nil {
		return nil, fmt.Errorf("supervisor: register debounce sweep: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}

// buildHandler assembles the mux router and the middleware stack:
// recovery, compression, CORS and request logging.
func buildHandler(store *repository.Store, pipeline *command.Pipeline) http.Handler {
	r := mux.NewRouter()

	api := httpapi.New(store, pipeline)
	api.MountRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	r.Use(handlers.CORS(
		handlers.AllowCredentials(),
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization", "Origin"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"})))

	return handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})
}
