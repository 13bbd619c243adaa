// Package logging configures the logrus loggers shared by the engine,
// the projector and the CLI.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to stderr at the given level. An empty
// or unknown level falls back to warn.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil || level == "" {
		lvl = logrus.WarnLevel
	}
	l.SetLevel(lvl)
	return l
}

// Component scopes a logger to one subsystem.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	if l == nil {
		l = defaultLogger
	}
	return l.WithField("component", name)
}

// Discard returns an entry that drops everything, for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

var defaultLogger = New("")
