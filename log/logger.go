package log

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

type Logger = *logrus.Logger

type Fields = logrus.Fields

// Global is the process wide logger used by the simulation.
var Global Logger = NewLogger("", "info")

// NewLogger returns a text logger at the given level. When filename is not
// empty the output is mirrored into a rotating log file.
func NewLogger(filename string, level string) Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	var out io.Writer = os.Stdout
	if filename != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	logger.SetOutput(out)
	return logger
}

// SetGlobalLogger replaces Global with a logger built from the arguments.
func SetGlobalLogger(filename string, level string) {
	Global = NewLogger(filename, level)
}
