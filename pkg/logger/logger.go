package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger represents a simple key-value logger interface
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

type logrusLogger struct {
	log *logrus.Logger
}

// NewLogger creates a new logger with the specified level
func NewLogger(level string) Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return &logrusLogger{log: log}
}

func (l *logrusLogger) Debug(msg string, keyvals ...interface{}) {
	l.log.WithFields(toFields(keyvals...)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, keyvals ...interface{}) {
	l.log.WithFields(toFields(keyvals...)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, keyvals ...interface{}) {
	l.log.WithFields(toFields(keyvals...)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, keyvals ...interface{}) {
	l.log.WithFields(toFields(keyvals...)).Error(msg)
}

// toFields converts alternating key/value pairs into logrus fields
func toFields(keyvals ...interface{}) logrus.Fields {
	fields := logrus.Fields{}

	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)

		if !ok {
			continue
		}

		if i+1 < len(keyvals) {
			fields[key] = keyvals[i+1]
		} else {
			fields[key] = "missing"
		}
	}

	return fields
}
