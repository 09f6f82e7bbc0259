package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zijiren233/flvplay/cmd/flags"
	"github.com/zijiren233/flvplay/server"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start flvplay server",
	Long:  `Start flvplay server hosting playback sessions controlled over HTTP`,
	RunE:  Serve,
}

func Serve(cmd *cobra.Command, args []string) error {
	listen := conf.Server.Listen
	if flags.Listen != "" {
		listen = flags.Listen
	}
	opts, err := streamConf()
	if err != nil {
		return err
	}
	s := server.NewServer(
		server.WithSessionTick(conf.TickInterval()),
		server.WithSessionStreamConf(opts...),
		server.WithCors(conf.Server.Cors),
		server.WithIngestLimit(conf.Server.IngestLimit),
	)
	fmt.Printf("Run on tcp://%s\nWebAPI: http://%s/sessions/{name}\nIngest: tcp://%s (send \"{name}\\n\" then flv data, play ingest://{name})\n", listen, listen, listen)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return s.ListenAndServe(ctx, listen)
}

func init() {
	RootCmd.AddCommand(ServeCmd)
	ServeCmd.Flags().StringVarP(&flags.Listen, "listen", "l", "", "address to listen on")
}
