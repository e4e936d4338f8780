package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egnor/video-play/internal/logger"
	"github.com/egnor/video-play/pkg/config"
	"github.com/egnor/video-play/pkg/display"
	"github.com/egnor/video-play/pkg/loader"
	"github.com/egnor/video-play/pkg/timeline"
	"github.com/spf13/cobra"
)

var (
	playStart    float64
	playDuration float64
)

var playCmd = &cobra.Command{
	Use:   "play <media>",
	Short: "Play a media source through a frame loader",
	Long: `Run a frame loader against a media source, advancing a wall-clock
playhead and keeping a sliding window of frames loaded around it. Each
frame is reported as the playhead reaches it. This exercises the full
load path (seek, decode, import, cache, eviction) without a display.

Examples:
  # Play from the beginning until end of stream
  videoplay play video.mp4

  # Play 5 seconds starting at 00:30
  videoplay play --start 30 --duration 5 video.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().Float64Var(&playStart, "start", 0, "Playhead start position (seconds)")
	playCmd.Flags().Float64Var(&playDuration, "duration", 0, "Stop after this many seconds (0 = play to end of stream)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	opener, err := BuildOpener(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := args[0]
	ld := loader.New(source, opener, display.NewMemoryLoader(), LoaderOptions(cfg)...)
	defer ld.Close()

	logger.Info("playback starting",
		logger.KeyMedia, source,
		"start", playStart,
		"duration", playDuration)

	notify := loader.NewSignal()
	behind := timeline.Seconds(cfg.Loader.WindowBehind)
	ahead := timeline.Seconds(cfg.Loader.WindowAhead)

	base := time.Now()
	origin := timeline.Seconds(playStart)
	playhead := origin
	var shown *timeline.Seconds // start time of the frame last reported

	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()

	for {
		playhead = origin + timeline.Seconds(time.Since(base).Seconds())
		if playDuration > 0 && playhead >= origin+timeline.Seconds(playDuration) {
			break
		}

		want := timeline.Interval{Begin: playhead - behind, End: playhead + ahead}
		if want.Begin < origin {
			want.Begin = origin
		}
		ld.SetRequest(timeline.NewIntervalSet(want), notify)

		snap := ld.Loaded()
		if frame := snap.FrameAt(playhead); frame != nil {
			if shown == nil || *shown != frame.Start {
				start := frame.Start
				shown = &start
				fmt.Printf("%8s  %dx%d  done=%s\n",
					frame.Start, frame.Image.Width(), frame.Image.Height(), &snap.Done)
			}
		}
		eof := snap.EOF
		snap.Release()

		if eof != nil && playhead >= *eof {
			logger.Info("end of stream", logger.KeyMedia, source, logger.KeyEOF, *eof)
			break
		}

		select {
		case <-ctx.Done():
			logger.Info("playback interrupted", logger.KeyMedia, source)
			return nil
		case <-notify.Chan():
		case <-ticker.C:
		}
	}

	logger.Info("playback finished",
		logger.KeyMedia, source,
		"played", (playhead - origin).String())
	return nil
}
