package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the process-wide logrus logger
func Setup(level, format string) error {
	return Configure(log.StandardLogger(), os.Stderr, level, format)
}

// Configure applies level and format ("text" or "json") to logger
func Configure(logger *log.Logger, out io.Writer, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	logger.SetOutput(out)
	logger.SetLevel(lvl)
	return nil
}
