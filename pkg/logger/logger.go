package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Leveled logger shared by the API server and the seed command.
// Backed by logrus; the package-level helpers keep call sites short.

var log = newLogger(os.Stdout)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	s := strings.ToLower(strings.TrimSpace(l))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil || s == "" {
		lvl = logrus.InfoLevel
	}
	switch lvl {
	case logrus.PanicLevel, logrus.TraceLevel:
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

// Logger exposes the underlying logrus logger (gin writers, slog bridges).
func Logger() *logrus.Logger { return log }

// Writer returns an io.Writer that logs each line at info level.
func Writer() *io.PipeWriter { return log.Writer() }

// WithComponent adds a component field to the logger.
func WithComponent(component string) *logrus.Entry {
	return log.WithField("component", component)
}

func Debugf(format string, v ...interface{}) { log.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { log.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { log.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { log.Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { log.Fatalf(format, v...) }

func Debug(v string) { log.Debug(v) }
func Info(v string)  { log.Info(v) }
func Warn(v string)  { log.Warn(v) }
func Error(v string) { log.Error(v) }

// LevelString returns the current level as text.
func LevelString() string {
	switch log.GetLevel() {
	case logrus.DebugLevel:
		return "debug"
	case logrus.WarnLevel:
		return "warn"
	case logrus.ErrorLevel:
		return "error"
	case logrus.FatalLevel:
		return "fatal"
	}
	return "info"
}
