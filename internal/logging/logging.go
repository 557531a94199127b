package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logFileName is resolved under the XDG state directory.
const logFileName = "patches/patches.log"

// SetupLogger configures the global logger for the given verbosity:
// 0 warn, 1 info, 2 debug, 3 and above trace. Output goes to the log file in
// the XDG state directory when it can be opened, and to stderr when console
// is set. Leave console off while a full-screen view owns the terminal.
func SetupLogger(verbosity int, console bool) {
	zerolog.SetGlobalLevel(levelFor(verbosity))

	var file io.Writer
	logFile, err := openLogFile()
	if err == nil {
		file = logFile
	}

	log.Logger = zerolog.New(io.MultiWriter(outputs(console, file)...)).With().Timestamp().Logger()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open log file")
	}

	if verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", verbosity).Bool("console", console).Msg("Logger initialized")
}

func outputs(console bool, file io.Writer) []io.Writer {
	var writers []io.Writer
	if console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		})
	}
	if file != nil {
		writers = append(writers, file)
	}
	return writers
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// GetLogger returns a logger tagged with the component name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LogOperationStart logs the start of an operation and returns a function
// that logs its completion with the elapsed time.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}

func openLogFile() (*os.File, error) {
	path, err := xdg.StateFile(logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log file path: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}
