package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zijiren233/flvplay/cmd/flags"
	"github.com/zijiren233/flvplay/container/flv"
	"github.com/zijiren233/flvplay/netstream"
	"github.com/zijiren233/flvplay/sound"
	"golang.org/x/sync/errgroup"
)

var PlayCmd = &cobra.Command{
	Use:   "play URL",
	Short: "Play an FLV file or url headless",
	Long:  `Play an FLV file or url in real time, logging status events and writing the mixed audio as raw s16le PCM`,
	Args:  cobra.ExactArgs(1),
	RunE:  Play,
}

func Play(cmd *cobra.Command, args []string) error {
	log := logrus.WithField("component", "play")

	output := conf.Audio.Output
	if flags.Output != "" {
		output = flags.Output
	}
	var out io.Writer = io.Discard
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	mixer := sound.NewMixer(out,
		sound.WithFormat(conf.AudioFormat()),
		sound.WithPeriod(conf.Audio.Period),
	)

	opts, err := streamConf()
	if err != nil {
		return err
	}
	if flags.BufferTime > 0 {
		opts = append(opts, netstream.WithBufferTime(flags.BufferTime))
	}
	opts = append(opts,
		netstream.WithSoundHandler(mixer),
		netstream.WithStatusHandler(func(s netstream.StatusCode) {
			code, level := s.Info()
			if s.IsError() {
				log.WithField("level", level).Warn(code)
			} else {
				log.Info(code)
			}
		}),
		netstream.WithMetadataHandler(func(m *flv.Metadata) {
			log.WithFields(logrus.Fields(m.Values)).Info(m.Name)
		}),
	)
	ns := netstream.New(opts...)
	defer ns.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := ns.Play(ctx, args[0]); err != nil {
		return err
	}
	if flags.Seek > 0 {
		if err := waitProbe(ctx, ns, conf.TickInterval()); err != nil {
			return err
		}
		if err := ns.Seek(uint32(flags.Seek.Milliseconds())); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mixer.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		drive(ctx, ns, log)
		return nil
	})
	return g.Wait()
}

// waitProbe advances ns until its codecs are known. Remote streams are
// rarely probed by the time Play returns.
func waitProbe(ctx context.Context, ns *netstream.NetStream, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for ns.Probing() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		ns.Advance()
	}
	if ns.URL() == "" {
		return errors.New("stream is not playable")
	}
	return nil
}

// drive advances ns once per tick until the stream stops, the duration
// limit is reached or ctx is done.
func drive(ctx context.Context, ns *netstream.NetStream, log *logrus.Entry) {
	ticker := time.NewTicker(conf.TickInterval())
	defer ticker.Stop()
	report := time.Now()
	start := ns.Time()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ns.Advance()
		if ns.DecodingState() == netstream.StateStopped {
			// dispatches the stop event
			ns.Advance()
			return
		}
		if flags.Duration > 0 && ns.Time()-start >= uint64(flags.Duration.Milliseconds()) {
			log.WithField("time", ns.Time()).Info("duration reached")
			return
		}
		if time.Since(report) >= time.Second {
			report = time.Now()
			log.WithFields(logrus.Fields{
				"time":   ns.Time(),
				"buffer": ns.BufferLength(),
				"state":  ns.DecodingState(),
				"loaded": ns.BytesLoaded(),
				"total":  ns.BytesTotal(),
			}).Debug("progress")
		}
	}
}

func init() {
	RootCmd.AddCommand(PlayCmd)
	PlayCmd.Flags().StringVarP(&flags.Output, "output", "o", "", "write mixed s16le pcm to file")
	PlayCmd.Flags().DurationVar(&flags.BufferTime, "buffer-time", 0, "buffer time before playback starts")
	PlayCmd.Flags().DurationVar(&flags.Seek, "seek", 0, "seek to position before playing")
	PlayCmd.Flags().DurationVar(&flags.Duration, "duration", 0, "stop after playing this long")
}
