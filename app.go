package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/kwv/mobsurvey/survey"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *survey.Config
	StateTracker *survey.StateTracker
	MQTTClient   *survey.MQTTClient
	Publisher    *survey.Publisher
	Store        *survey.Store

	// RunID identifies the last batch
	RunID string

	// CLI Flags (effectively dependencies)
	ConfigFile string
	InputDir   string
	Ext        string
	OutputDir  string
	Database   string
	Overwrite  string
	NoExport   bool
	HttpPort   int
	HttpMode   bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: survey.NewStateTracker(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.InputDir = opts.InputDir
	a.Ext = opts.Ext
	a.OutputDir = opts.OutputDir
	a.Database = opts.Database
	a.Overwrite = opts.Overwrite
	a.NoExport = opts.NoExport
	a.HttpPort = opts.HttpPort
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file if present and applies the CLI overrides.
// A missing file at the default location means defaults.
func (a *App) loadConfig() (*survey.Config, error) {
	var config *survey.Config
	if _, err := os.Stat(a.ConfigFile); err == nil {
		config, err = survey.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded config from %s", a.ConfigFile)
	} else if a.ConfigFile != "" && a.ConfigFile != "config.yaml" {
		return nil, fmt.Errorf("config file not found: %s", a.ConfigFile)
	} else {
		config = survey.DefaultConfig()
	}

	if a.InputDir != "" {
		config.Input.Dir = a.InputDir
	}
	if a.Ext != "" {
		config.Input.Ext = a.Ext
	}
	if a.OutputDir != "" {
		config.Output.Dir = a.OutputDir
	}
	if a.Database != "" {
		config.Output.Database = a.Database
	}
	if a.Overwrite != "" {
		config.Output.Overwrite = a.Overwrite
	}
	if a.NoExport {
		config.Output.Formats = nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a.Config = config
	return config, nil
}

// sensorResolver loads the sensor table, or passes ids through without one
func sensorResolver(config *survey.Config) (survey.SensorResolver, error) {
	if config.Input.SensorTable == "" {
		return survey.PassthroughResolver{}, nil
	}
	table, err := survey.LoadSensorTable(config.Input.SensorTable)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d sensor ids from %s", table.Len(), config.Input.SensorTable)
	return table, nil
}

// discover lists the session logs of the configured input directory
func (a *App) discover(config *survey.Config) ([]string, error) {
	files, err := survey.DiscoverSessions(config.Input.Dir, config.Input.Ext)
	if err != nil {
		return nil, fmt.Errorf("finding session logs: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no *%s session logs found in %s", config.Input.Ext, config.Input.Dir)
	}
	return files, nil
}

// RunParseOnly parses every session log and prints what it contains
func (a *App) RunParseOnly() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	resolver, err := sensorResolver(config)
	if err != nil {
		return err
	}
	files, err := a.discover(config)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d session log(s)\n\n", len(files))
	for _, file := range files {
		info := survey.NewSessionInfo(file, resolver, config.Output.Dir)
		fmt.Printf("=== %s ===\n", info.ID)
		fmt.Printf("File: %s\n", file)

		sl, err := survey.ParseSessionFile(file, info.ID)
		if err != nil {
			fmt.Printf("ERROR: %v\n\n", err)
			continue
		}
		s := survey.NewSession(info, sl)
		fmt.Printf("Sensor: %s (%s)\n", info.Sensor, info.SensorLong)
		fmt.Printf("Points: %d (meas %d, input %d)\n",
			len(s.Points), len(s.MeasIndices()), len(s.Filter(survey.AttrPlus, survey.AttrMinus)))
		if s.Header != nil {
			fmt.Printf("Colour range: %.3f .. %.3f (header)\n", s.Header.Min, s.Header.Max)
		}
		fmt.Println()
	}
	return nil
}

// RunBatch processes every session log, exports artifacts, accumulates the
// database and announces the results. A failing session is logged and
// skipped.
func (a *App) RunBatch() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	resolver, err := sensorResolver(config)
	if err != nil {
		return err
	}
	files, err := a.discover(config)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d session log(s)\n", len(files))

	ctx := context.Background()
	a.RunID = survey.NewRunID()

	if config.Output.Database != "" {
		store, err := survey.OpenStore(ctx, config.Output.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		a.Store = store
		if err := store.BeginRun(ctx, a.RunID, config.Output.Overwrite, len(files)); err != nil {
			return err
		}
	}

	a.initPublisher(config)
	defer func() {
		if a.MQTTClient != nil {
			a.MQTTClient.Disconnect()
		}
	}()

	var exporter *survey.Exporter
	if len(config.Output.Formats) > 0 {
		exporter = survey.NewExporter(survey.ExportOptionsFromConfig(config))
	}
	pipeline := survey.NewPipeline(config.Processing)

	width := len(strconv.Itoa(len(files)))
	var processed []*survey.Session
	for i, file := range files {
		fmt.Printf("%0*d/%d %s\n", width, i+1, len(files), filepath.Base(file))

		s, artifacts, err := processFile(file, config.Output.Dir, pipeline, resolver, exporter)
		if err != nil {
			log.Printf("Error processing %s: %v", file, err)
			a.StateTracker.AddFailure(file, err)
			continue
		}

		a.StateTracker.AddSession(s, artifacts)
		processed = append(processed, s)

		if a.Publisher != nil {
			if err := a.Publisher.PublishSession(s.Summarize()); err != nil {
				log.Printf("Error publishing %s: %v", s.Info.ID, err)
			}
		}
	}

	failed := a.StateTracker.FailedPaths()
	if a.Store != nil {
		if err := a.Store.SaveSessions(ctx, a.RunID, processed, config.Output.Overwrite); err != nil {
			log.Printf("Error writing database %s: %v", config.Output.Database, err)
		} else {
			fmt.Printf("Database %s updated (%s)\n", config.Output.Database, config.Output.Overwrite)
		}
		if err := a.Store.FinishRun(ctx, a.RunID, len(processed), len(failed)); err != nil {
			log.Printf("Error finishing run: %v", err)
		}
	}

	if a.Publisher != nil {
		batch := survey.BatchSummary{
			RunID:     a.RunID,
			Files:     len(files),
			Processed: len(processed),
			Failed:    failed,
		}
		for _, s := range processed {
			batch.Sessions = append(batch.Sessions, s.Info.ID)
		}
		if err := a.Publisher.PublishBatch(batch); err != nil {
			log.Printf("Error publishing batch summary: %v", err)
		}
	}

	fmt.Printf("\nProcessed %d/%d session(s)", len(processed), len(files))
	if len(failed) > 0 {
		fmt.Printf(", %d failed", len(failed))
	}
	fmt.Println()

	if len(processed) == 0 {
		return fmt.Errorf("all %d session(s) failed", len(files))
	}
	return nil
}

// processFile runs the pipeline and the exporter over one session log. A
// failed export fails the whole session: the artifacts already written are
// removed and nothing reaches the registry, the database or the broker. A
// panic is returned as an error so the batch can go on.
func processFile(file, outputRoot string, pipeline *survey.Pipeline, resolver survey.SensorResolver, exporter *survey.Exporter) (s *survey.Session, artifacts map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, artifacts = nil, nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	s, err = pipeline.Process(file, resolver, outputRoot)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range s.Notices {
		log.Printf("[%s] %s", s.Info.ID, n)
	}
	if exporter == nil {
		return s, nil, nil
	}

	artifacts, err = exporter.Export(s)
	if err != nil {
		for _, path := range artifacts {
			if rmErr := os.Remove(path); rmErr != nil {
				log.Printf("Error removing partial artifact %s: %v", path, rmErr)
			}
		}
		return nil, nil, fmt.Errorf("export %s: %w", s.Info.ID, err)
	}
	return s, artifacts, nil
}

// initPublisher connects to the broker when one is configured. MQTT problems
// never stop the batch.
func (a *App) initPublisher(config *survey.Config) {
	client, err := survey.InitMQTT(config)
	if err != nil {
		log.Printf("MQTT unavailable: %v", err)
		return
	}
	if client == nil {
		return
	}
	if err := client.WaitConnected(5 * time.Second); err != nil {
		log.Printf("MQTT broker not reachable yet: %v", err)
	}
	a.MQTTClient = client
	a.Publisher = survey.NewPublisherFromConfig(client.GetClient(), config.MQTT)
	fmt.Println("MQTT session publisher initialized")
}

// RunService serves the processed sessions until interrupted
func (a *App) RunService() error {
	addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           newHTTPServer(a.StateTracker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
	fmt.Println("  GET /health                          - Health check")
	fmt.Println("  GET /sessions                        - Processed sessions")
	fmt.Println("  GET /sessions/{id}                   - Session summary")
	fmt.Println("  GET /sessions/{id}/map.svg|map.png   - Session map")
	fmt.Println("  GET /sessions/{id}/grid.png|grid.grd - Interpolated grid")
	fmt.Println("  GET /sessions/{id}/figure.html       - Interactive figure")
	fmt.Println("  GET /sessions/{id}/features.geojson  - Session features")
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("[HTTP] server error: %w", err)
		}
		return nil
	case <-sigChan:
	}

	fmt.Println("\nShutting down service...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	fmt.Println("Service stopped")
	return nil
}
