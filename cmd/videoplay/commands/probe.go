package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/egnor/video-play/pkg/config"
	"github.com/egnor/video-play/pkg/timeline"
	"github.com/spf13/cobra"
)

var (
	probeFrames int
	probeSeek   float64
)

var probeCmd = &cobra.Command{
	Use:   "probe <media>",
	Short: "Inspect a media source and time its decoding",
	Long: `Open a media source directly (no frame loader), print its stream
metadata, then decode frames one at a time reporting their display times
and how long each decode took.

Examples:
  # Probe a local file
  videoplay probe video.mp4

  # Decode only the first 10 frames
  videoplay probe --frames 10 video.mp4

  # Seek before decoding
  videoplay probe --seek 10.5 video.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeFrames, "frames", 0, "Stop after this many frames (0 = decode to end of stream)")
	probeCmd.Flags().Float64Var(&probeSeek, "seek", 0, "Seek to this time (seconds) before decoding")
}

func runProbe(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source := args[0]
	dec, err := opener(ctx, source)
	if err != nil {
		return err
	}
	defer dec.Close()

	info := dec.Info()
	fmt.Printf("Source: %s\n", source)
	if info.Container != "" {
		fmt.Printf("  container:    %s\n", info.Container)
	}
	if info.Codec != "" {
		fmt.Printf("  codec:        %s\n", info.Codec)
	}
	if info.PixelFormat != "" {
		fmt.Printf("  pixel format: %s\n", info.PixelFormat)
	}
	if info.Width > 0 {
		fmt.Printf("  size:         %dx%d\n", info.Width, info.Height)
	}
	if info.Duration > 0 {
		fmt.Printf("  duration:     %s\n", info.Duration)
	}
	if info.FrameRate > 0 {
		fmt.Printf("  frame rate:   %.3f fps\n", info.FrameRate)
	}
	if info.BitRate > 0 {
		fmt.Printf("  bit rate:     %d b/s\n", info.BitRate)
	}

	if probeSeek > 0 {
		if err := dec.SeekBefore(timeline.Seconds(probeSeek)); err != nil {
			return err
		}
		fmt.Printf("\nSeeked before %s\n", timeline.Seconds(probeSeek))
	}

	fmt.Println()
	start := time.Now()
	count := 0
	for probeFrames == 0 || count < probeFrames {
		fetchStart := time.Now()
		frame, err := dec.NextFrame(ctx)
		if err != nil {
			return err
		}
		if frame == nil {
			fmt.Printf("End of stream after %d frames\n", count)
			break
		}
		count++

		flags := ""
		if frame.KeyFrame {
			flags += " key"
		}
		if frame.Corrupt {
			flags += " CORRUPT"
		}
		fmt.Printf("%3d  %s  %dx%d %s  %6.1fms%s\n",
			count, frame.Time, frame.Image.Width, frame.Image.Height,
			frame.Image.Format, float64(time.Since(fetchStart).Microseconds())/1000.0, flags)
	}

	elapsed := time.Since(start)
	if count > 0 && elapsed > 0 {
		fmt.Printf("\nDecoded %d frames in %s (%.1f fps)\n",
			count, elapsed.Round(time.Millisecond), float64(count)/elapsed.Seconds())
	}
	return nil
}
