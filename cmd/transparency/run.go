package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Arnold-Curtis/AudioGlass/internal/config"
	"github.com/Arnold-Curtis/AudioGlass/internal/debugtap"
	"github.com/Arnold-Curtis/AudioGlass/internal/engine"
	malgosvc "github.com/Arnold-Curtis/AudioGlass/internal/hostaudio/malgo"
	"github.com/Arnold-Curtis/AudioGlass/internal/logging"
	"github.com/Arnold-Curtis/AudioGlass/internal/status"
)

// runFlags mirrors the teacher's setupRealtimeFlags pattern: plain
// locals bound to viper, applied over the loaded EngineConfig only
// for flags the user actually set, so an unset flag never clobbers a
// value that came from the config file.
type runFlags struct {
	input        string
	output       string
	sampleRate   int
	channels     int
	periodFrames int
	ringFrames   int
	shareMode    string
	profile      string
	volume       float64
	listen       string
	debugWAV     string
	sentryDSN    string
}

func runCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the duplex passthrough engine in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.input, "input", viper.GetString("input"), "Capture device ID (empty for system default)")
	cmd.Flags().StringVar(&f.output, "output", viper.GetString("output"), "Playback device ID (empty for system default)")
	cmd.Flags().IntVar(&f.sampleRate, "sample-rate", viper.GetInt("sample_rate"), "Internal processing sample rate in Hz")
	cmd.Flags().IntVar(&f.channels, "channels", viper.GetInt("channels"), "Channel count, 1 or 2")
	cmd.Flags().IntVar(&f.periodFrames, "period-frames", viper.GetInt("period_frames"), "Target callback period size in frames")
	cmd.Flags().IntVar(&f.ringFrames, "ring-frames", viper.GetInt("ring_buffer_frames"), "Ring buffer capacity in frames")
	cmd.Flags().StringVar(&f.shareMode, "share-mode", viper.GetString("share_mode"), "shared or exclusive")
	cmd.Flags().StringVar(&f.profile, "profile", viper.GetString("performance_profile"), "low-latency or conservative")
	cmd.Flags().Float64Var(&f.volume, "volume", viper.GetFloat64("volume"), "Initial output volume, 0.0 to 1.0")
	cmd.Flags().StringVar(&f.listen, "listen", viper.GetString("listen"), "Address to serve Prometheus metrics on (empty disables)")
	cmd.Flags().StringVar(&f.debugWAV, "debug-capture", viper.GetString("debug_capture"), "Path to spill a WAV copy of the normalized capture stream (empty disables)")
	cmd.Flags().StringVar(&f.sentryDSN, "sentry-dsn", viper.GetString("sentry_dsn"), "Sentry DSN for best-effort error forwarding (empty disables)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runEngine(cmd *cobra.Command, f runFlags) error {
	log := logging.ForComponent("cli")

	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRunFlags(cmd, &cfg, f)

	registry := prometheus.NewRegistry()
	metrics, err := status.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	if f.sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: f.sentryDSN}); err != nil {
			log.Warn("sentry initialization failed, continuing without error forwarding", "error", err)
			f.sentryDSN = ""
		}
	}

	var debugSink engine.DebugSink
	var recorder *debugtap.Recorder
	if f.debugWAV != "" {
		recorder = debugtap.New(cfg.SampleRate, cfg.Channels)
		if err := recorder.Start(f.debugWAV); err != nil {
			return fmt.Errorf("failed to start debug capture: %w", err)
		}
		debugSink = recorder
		defer recorder.Stop()
	}

	poster := status.Poster(func(e status.Event) {
		switch e.Kind {
		case status.EventStateChanged:
			log.Info("engine state changed", "running", e.Running)
		case status.EventError:
			log.Error("engine error", "kind", e.ErrorKind, "message", e.Message)
		case status.EventDeviceDisconnected:
			log.Warn("device disconnected", "device_id", e.DeviceID)
		}
	})

	svc, err := malgosvc.New()
	if err != nil {
		return fmt.Errorf("failed to initialize host audio service: %w", err)
	}
	defer svc.Close()

	c := engine.New(engine.Options{
		Service:      svc,
		Poster:       poster,
		Metrics:      metrics,
		DebugCapture: debugSink,
	})
	if f.sentryDSN != "" {
		c.EnableSentry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer c.Uninitialize(context.Background())

	c.SetVolume(cfg.Volume)

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer c.Stop(context.Background())

	var metricsServer *http.Server
	if f.listen != "" {
		metricsServer = serveMetrics(f.listen, registry, log)
		defer shutdownMetrics(metricsServer, log)
	}

	log.Info("transparency engine running",
		"input", cfg.InputDeviceID, "output", cfg.OutputDeviceID,
		"sample_rate", cfg.SampleRate, "channels", cfg.Channels)

	waitForShutdown(log)
	return nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.EngineConfig, f runFlags) {
	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.InputDeviceID = f.input
	}
	if changed("output") {
		cfg.OutputDeviceID = f.output
	}
	if changed("sample-rate") {
		cfg.SampleRate = f.sampleRate
	}
	if changed("channels") {
		cfg.Channels = f.channels
	}
	if changed("period-frames") {
		cfg.PeriodFrames = f.periodFrames
	}
	if changed("ring-frames") {
		cfg.RingBufferFrames = f.ringFrames
	}
	if changed("share-mode") {
		cfg.ShareMode = config.ShareMode(f.shareMode)
	}
	if changed("profile") {
		cfg.PerformanceProfile = config.PerformanceProfile(f.profile)
	}
	if changed("volume") {
		cfg.Volume = f.volume
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped unexpectedly", "error", err)
		}
	}()
	log.Info("metrics endpoint listening", "addr", addr)
	return server
}

func shutdownMetrics(server *http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown error", "error", err)
	}
}

func waitForShutdown(log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received, stopping engine")
}
