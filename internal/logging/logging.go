// Package logging sets up the shared logger: warnings and progress on
// stderr, optionally mirrored into a rotated log file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log lines go.
type Options struct {
	// Verbose enables progress lines on stderr. Warnings and errors are
	// always written.
	Verbose bool
	// File, when set, mirrors everything into a rotated log file.
	File string
}

// New builds the logger the rest of the program shares. A nil return is
// never produced; with Verbose off and no file the logger still carries
// warnings to stderr.
func New(opts Options) *log.Logger {
	writers := []io.Writer{os.Stderr}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return log.New(io.MultiWriter(writers...), "", log.LstdFlags)
}

// Quiet returns a logger that keeps the file mirror, if any, but
// discards stderr output. Used when only warnings should surface.
func Quiet(opts Options) *log.Logger {
	if opts.File == "" {
		return log.New(io.Discard, "", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}, "", log.LstdFlags)
}
