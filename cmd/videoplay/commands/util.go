package commands

import (
	"fmt"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/config"
	"github.com/egnor/video-play/pkg/loader"
	"github.com/egnor/video-play/pkg/media"
	"github.com/egnor/video-play/pkg/media/gst"
	"github.com/egnor/video-play/pkg/media/mediatest"
	"github.com/egnor/video-play/pkg/metrics"
	"github.com/egnor/video-play/pkg/timeline"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// BuildOpener constructs the configured decoder backend.
func BuildOpener(cfg *config.Config) (media.Opener, error) {
	switch cfg.Media.Backend {
	case "gst":
		return gst.Opener(), nil
	case "fake":
		src := &mediatest.Source{
			FrameDuration: timeline.Seconds(1.0 / cfg.Media.Fake.FPS),
			EOF:           timeline.Seconds(cfg.Media.Fake.Duration),
		}
		return src.Opener(), nil
	default:
		return nil, fmt.Errorf("unknown media backend %q (want \"gst\" or \"fake\")", cfg.Media.Backend)
	}
}

// LoaderOptions derives loader options from configuration. Metrics are
// attached only when the registry is enabled.
func LoaderOptions(cfg *config.Config) []loader.Option {
	opts := []loader.Option{
		loader.WithFetchTimeout(cfg.Loader.FetchTimeout),
	}
	if m := metrics.NewLoaderMetrics(); m != nil {
		opts = append(opts, loader.WithMetrics(m))
	}
	return opts
}
