// Package logging sets up the process-wide zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/dkeye/Arena/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init installs the global logger from cfg and returns it. When cfg.File is
// set, events also go to a rotating file as JSON. The returned closer flushes
// that file.
func Init(cfg config.LogConfig, out io.Writer) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var console io.Writer = out
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: out}
	}

	var closer io.Closer = nopCloser{}
	w := console
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		w = zerolog.MultiLevelWriter(console, lj)
		closer = lj
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger, closer
}

// Default is the bootstrap logger used before config is loaded.
func Default() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
