package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/api"
	"github.com/egnor/video-play/pkg/config"
	"github.com/egnor/video-play/pkg/display"
	"github.com/egnor/video-play/pkg/loader"
	"github.com/egnor/video-play/pkg/metrics"
	"github.com/egnor/video-play/pkg/timeline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveWindow float64

var serveCmd = &cobra.Command{
	Use:   "serve <media> [media...]",
	Short: "Run frame loaders behind the status API",
	Long: `Start one frame loader per media source and serve the status API.
Each loader keeps the leading window of its source loaded; the API
exposes per-loader coverage, cache state and (optionally) Prometheus
metrics for inspection.

Examples:
  # Serve one source with the API on the default port
  videoplay serve video.mp4

  # Serve several sources with metrics enabled
  VIDEOPLAY_METRICS_ENABLED=true videoplay serve a.mp4 b.mp4

  # Override the API port
  VIDEOPLAY_API_PORT=8080 videoplay serve video.mp4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Float64Var(&serveWindow, "window", 0, "Seconds of leading content to keep loaded per source (0 = config window_ahead)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	// Hot-reload log level and format on config file changes.
	watchPath := GetConfigFile()
	if watchPath == "" {
		watchPath = config.GetDefaultConfigPath()
	}
	if _, statErr := os.Stat(watchPath); statErr == nil {
		if stopWatch, err := config.Watch(watchPath); err != nil {
			logger.Warn("config watch unavailable", logger.KeyError, err)
		} else {
			defer stopWatch()
		}
	}

	opener, err := BuildOpener(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window := timeline.Seconds(serveWindow)
	if window <= 0 {
		window = timeline.Seconds(cfg.Loader.WindowAhead)
	}

	registry := loader.NewRegistry()
	defer registry.CloseAll()

	images := display.NewMemoryLoader()
	for _, source := range args {
		ld := loader.New(source, opener, images, LoaderOptions(cfg)...)
		ld.SetRequest(timeline.NewIntervalSet(timeline.Interval{Begin: 0, End: window}), nil)
		id := registry.Add(ld)
		logger.Info("loader started",
			logger.KeySessionID, id,
			logger.KeyMedia, source,
			logger.KeyWanted, timeline.Interval{Begin: 0, End: window})
	}

	cfg.API.Enabled = true
	cfg.API.ShutdownTimeout = cfg.ShutdownTimeout
	server := api.NewServer(cfg.API, registry)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Start(ctx)
	})

	logger.Info("serving",
		"sources", len(args),
		"port", cfg.API.Port,
		"metrics", cfg.Metrics.Enabled)

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
