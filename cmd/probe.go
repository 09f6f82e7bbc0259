package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/flvplay/cmd/flags"
	"github.com/zijiren233/flvplay/container/flv"
	"github.com/zijiren233/flvplay/protocol/amf"
)

var ProbeCmd = &cobra.Command{
	Use:   "probe FILE",
	Short: "List the tags of an FLV file",
	Long:  `List the tags of an FLV file with their timestamps, codecs and sizes`,
	Args:  cobra.ExactArgs(1),
	RunE:  Probe,
}

type probeStats struct {
	video, audio, script, keys int
	last                       uint32
}

func Probe(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()
	return probe(flv.NewReader(file, flv.WithReaderBuffer(64*1024)), cmd.OutOrStdout(), !flags.Summary)
}

func probe(r *flv.Reader, out io.Writer, list bool) error {
	var st probeStats
	for {
		p, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		st.last = max(st.last, p.TimeStamp)
		switch {
		case p.IsVideo:
			st.video++
			vh, _ := p.Header.(av.VideoPacketHeader)
			key := vh != nil && vh.IsKeyFrame()
			if key {
				st.keys++
			}
			if list && vh != nil {
				fmt.Fprintf(out, "video ts=%d size=%d codec=%d key=%v\n", p.TimeStamp, len(p.Data), vh.CodecID(), key)
			}
		case p.IsAudio:
			st.audio++
			ah, _ := p.Header.(av.AudioPacketHeader)
			if list && ah != nil {
				fmt.Fprintf(out, "audio ts=%d size=%d format=%d rate=%d\n", p.TimeStamp, len(p.Data), ah.SoundFormat(), av.SoundRateHz(ah.SoundRate()))
			}
		case p.IsMetadata:
			st.script++
			sd, err := amf.DecodeScriptData(p.Data)
			if err != nil {
				fmt.Fprintf(out, "script ts=%d size=%d error=%v\n", p.TimeStamp, len(p.Data), err)
				continue
			}
			if list {
				values, _ := sd.Object()
				fmt.Fprintf(out, "script ts=%d name=%s values=%v\n", p.TimeStamp, sd.Name, values)
			}
		}
	}
	fmt.Fprintf(out, "tags video=%d audio=%d script=%d keyframes=%d last_ts=%d audio_stream=%v video_stream=%v\n",
		st.video, st.audio, st.script, st.keys, st.last, r.HasAudio(), r.HasVideo())
	return nil
}

func init() {
	RootCmd.AddCommand(ProbeCmd)
	ProbeCmd.Flags().BoolVarP(&flags.Summary, "summary", "s", false, "print totals only")
}
