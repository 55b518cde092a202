// Package logging builds the service's root logrus logger.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out at level, formatted as "json" or
// "text". An unknown level falls back to info and is reported on the
// returned logger.
func New(out io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if strings.ToLower(format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithField("log_level", level).Warn("unknown log level, using info")
	} else {
		logger.SetLevel(lvl)
	}
	return logger
}

// Component returns an entry tagged with the component name.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
