package utils

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// NewLogger returns a text logger writing to out.
func NewLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	l := logrus.New()
	ConfigureLogger(l, level, out)
	return l
}

// ConfigureLogger points l at out with a text formatter. Colors are enabled
// only when out is a terminal.
func ConfigureLogger(l *logrus.Logger, level logrus.Level, out io.Writer) {
	color := isTerminal(out)
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:     color,
		DisableColors:   !color,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
