package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/flvplay/cmd/flags"
	"github.com/zijiren233/flvplay/container/flv"
)

var GenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a test FLV file",
	Long:  `Generate an FLV file with JPEG video frames and a PCM sine tone`,
	RunE:  Gen,
}

func genConf() (flv.SynthConf, error) {
	c := flv.DefaultSynthConf()
	if flags.GenNoAudio && flags.GenNoVideo {
		return c, errors.New("nothing to generate")
	}
	if flags.GenDuration <= 0 {
		return c, fmt.Errorf("invalid duration: %v", flags.GenDuration)
	}
	c.Duration = uint32(flags.GenDuration.Milliseconds())
	if flags.GenNoVideo {
		c.VideoInterval = 0
	} else {
		if flags.GenFrameRate <= 0 || flags.GenFrameRate > 1000 {
			return c, fmt.Errorf("invalid frame rate: %v", flags.GenFrameRate)
		}
		c.VideoInterval = uint32(1000/flags.GenFrameRate + 0.5)
		c.KeyInterval = uint32(flags.GenKeyInterval.Milliseconds())
		if _, err := fmt.Sscanf(flags.GenSize, "%dx%d", &c.Width, &c.Height); err != nil || c.Width <= 0 || c.Height <= 0 {
			return c, fmt.Errorf("invalid size: %q", flags.GenSize)
		}
	}
	if flags.GenNoAudio {
		c.AudioInterval = 0
	} else if flags.GenAudioDuration < 0 || flags.GenAudioDuration > flags.GenDuration {
		return c, fmt.Errorf("invalid audio duration: %v", flags.GenAudioDuration)
	} else {
		c.AudioDuration = uint32(flags.GenAudioDuration.Milliseconds())
	}
	c.Stereo = !flags.GenMono
	return c, nil
}

func Gen(cmd *cobra.Command, args []string) error {
	c, err := genConf()
	if err != nil {
		return err
	}
	file, err := os.Create(flags.GenOutput)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err := flv.Synthesize(w, c); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"file":     flags.GenOutput,
		"duration": c.Duration,
		"video":    c.VideoInterval > 0,
		"audio":    c.AudioInterval > 0,
		"rate":     av.SoundRateHz(c.SoundRate),
	}).Info("generated")
	return nil
}

func init() {
	RootCmd.AddCommand(GenCmd)
	GenCmd.Flags().StringVarP(&flags.GenOutput, "output", "o", "test.flv", "output file")
	GenCmd.Flags().DurationVarP(&flags.GenDuration, "duration", "d", 10e9, "stream duration")
	GenCmd.Flags().Float64Var(&flags.GenFrameRate, "fps", 25, "video frame rate")
	GenCmd.Flags().DurationVar(&flags.GenKeyInterval, "key-interval", 1e9, "key frame interval, 0 for all key frames")
	GenCmd.Flags().StringVar(&flags.GenSize, "size", "64x48", "video size")
	GenCmd.Flags().BoolVar(&flags.GenNoAudio, "no-audio", false, "omit audio")
	GenCmd.Flags().BoolVar(&flags.GenNoVideo, "no-video", false, "omit video")
	GenCmd.Flags().BoolVar(&flags.GenMono, "mono", false, "mono audio")
	GenCmd.Flags().DurationVar(&flags.GenAudioDuration, "audio-duration", 0, "end audio early, 0 for the full duration")
}
