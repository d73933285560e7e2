package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/okkola/labdaq/internal/api"
	"codeberg.org/okkola/labdaq/internal/calibration"
	"codeberg.org/okkola/labdaq/internal/config"
	"codeberg.org/okkola/labdaq/internal/descriptor"
	"codeberg.org/okkola/labdaq/internal/logger"
	"codeberg.org/okkola/labdaq/internal/output"
	"codeberg.org/okkola/labdaq/internal/output/console"
	"codeberg.org/okkola/labdaq/internal/output/mqtt"
	"codeberg.org/okkola/labdaq/internal/output/sqlite"
	"codeberg.org/okkola/labdaq/internal/pid"
	"codeberg.org/okkola/labdaq/internal/sample"
	"codeberg.org/okkola/labdaq/internal/session"
)

const (
	publishBatchSize = 32
	publishInterval  = 250 * time.Millisecond
	apiReadTimeout   = 5 * time.Second
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load(os.Args[1:])
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("another instance is running")
	}
	defer pid.Remove()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Msg("daemon exited with error")
		pid.Remove()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	registry := calibration.DefaultRegistry()
	engine := calibration.NewEngine(registry)

	descriptors, err := descriptor.LoadDir(cfg.DescriptorDir, registry)
	if err != nil {
		return err
	}
	logger.Info().Int("devices", len(descriptors)).Str("dir", cfg.DescriptorDir).
		Msg("Device descriptors loaded")

	settings := make(map[string]session.DeviceSettings, len(descriptors))
	for _, d := range descriptors {
		settings[d.Name] = session.DeviceSettings{RateHz: cfg.DefaultRateHz}
	}

	sess, err := session.Start(ctx, session.Config{
		QueueDepth:      cfg.QueueDepth,
		ShutdownTimeout: time.Duration(cfg.ShutdownTimeoutMs) * time.Millisecond,
	}, engine, descriptors, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Stop(); err != nil {
			logger.Error().Err(err).Msg("session teardown reported errors")
		}
	}()
	logger.Info().Str("session_id", sess.ID()).Msg("Acquisition session started")

	sinks, err := buildSinks()
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error().Err(err).Msg("output teardown reported errors")
		}
	}()

	if cfg.ListenAddr != "" {
		server := startAPI(sess)
		defer shutdownAPI(server)
	}

	go logEvents(sess.Events())

	publish(sess.Samples(), sinks)
	logger.Info().Msg("Sample stream ended")

	return nil
}

// buildSinks assembles the output fan-out from the enabled sinks.
func buildSinks() (*output.Fanout, error) {
	var sinks []output.Output

	if cfg.Console {
		sinks = append(sinks, console.New(nil))
	}
	if cfg.Archive {
		archive, err := sqlite.New(sqlite.Config{DBPath: cfg.ArchiveDB})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, archive)
	}
	if cfg.MQTTBroker != "" {
		broker, err := mqtt.New(mqtt.Config{
			Broker:    cfg.MQTTBroker,
			ClientID:  cfg.MQTTClientID,
			TopicBase: cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, broker)
	}

	return output.NewFanout(sinks...), nil
}

// publish drains the merged sample stream into the sinks in small batches,
// flushing on a short interval so the console stays live at low rates.
func publish(samples <-chan sample.Sample, sinks *output.Fanout) {
	batch := make([]sample.Sample, 0, publishBatchSize)
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := sinks.Publish(batch); err != nil {
			logger.Error().Err(err).Msg("failed to publish samples")
		}
		batch = batch[:0]
	}

	for {
		select {
		case s, ok := <-samples:
			if !ok {
				flush()
				return
			}
			batch = append(batch, s)
			if len(batch) >= publishBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func logEvents(events <-chan session.Event) {
	for ev := range events {
		e := logger.Info()
		switch ev.Kind {
		case session.EventDeviceErrored, session.EventShutdownTimeout:
			e = logger.Error()
		case session.EventCommRetry, session.EventDomainViolation:
			e = logger.Warn()
		}
		evt := e.Str("event", string(ev.Kind)).Str("device", ev.DeviceID)
		if ev.Detail != "" {
			evt = evt.Str("detail", ev.Detail)
		}
		if ev.Err != nil {
			evt = evt.Err(ev.Err)
		}
		evt.Send()
	}
}

func startAPI(sess *session.Session) *http.Server {
	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     api.NewRouter(sess),
		ReadTimeout: apiReadTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("Control API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("control API failed")
		}
	}()

	return server
}

func shutdownAPI(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("control API shutdown failed")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
