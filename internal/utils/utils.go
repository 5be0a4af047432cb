package utils

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// RetryLogger routes go-retryablehttp's leveled output into a logrus logger.
// Retry chatter is only interesting when debugging, so Info is demoted.
type RetryLogger struct {
	L *logrus.Logger
}

func (r RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Error(msg)
}

func (r RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Warn(msg)
}

func (r RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Debug(msg)
}

func (r RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Debug(msg)
}

func (r RetryLogger) entry(kv []interface{}) *logrus.Entry {
	l := r.L
	if l == nil {
		l = Log
	}
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.WithFields(fields)
}
