package cmd

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zijiren233/flvplay/cmd/flags"
	"github.com/zijiren233/flvplay/codec"
	"github.com/zijiren233/flvplay/config"
	"github.com/zijiren233/flvplay/netstream"
	"github.com/zijiren233/flvplay/utils"
)

var RootCmd = &cobra.Command{
	Use:               "flvplay",
	Short:             "flvplay",
	Long:              `flvplay plays FLV streams headless and hosts playback sessions over HTTP`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var conf = config.Default()

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and applies the global flags on top of it.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
	if flags.Debug {
		c.Logging.Level = logrus.DebugLevel.String()
	}
	if err := c.Validate(); err != nil {
		return err
	}
	conf = c

	utils.ConfigureLogger(logrus.StandardLogger(), conf.LogLevel(), os.Stderr)
	if flags.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// streamConf translates the player settings into NetStream options.
func streamConf() ([]netstream.NetStreamConf, error) {
	backend, err := codec.Lookup(conf.Player.Backend)
	if err != nil {
		return nil, err
	}
	return []netstream.NetStreamConf{
		netstream.WithBufferTime(conf.Player.BufferTime),
		netstream.WithAudioQueueCap(conf.Player.AudioQueueCap),
		netstream.WithParseChunk(conf.Player.ParseChunkTags),
		netstream.WithAudioFormat(conf.AudioFormat()),
		netstream.WithBackend(backend),
	}, nil
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "debug mode")
	RootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "yaml config file")
	RootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
}
