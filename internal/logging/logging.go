// Configures the process-wide logrus logger
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iTrooz/ask-relay/internal/config"
)

// Setup applies the configured level and format to the standard logrus logger
func Setup(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format '%s'", cfg.Format)
	}

	return nil
}
