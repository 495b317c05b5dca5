package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter forwards to a *logrus.Logger, one entry per call with the
// component and fields attached.
type LogrusAdapter struct {
	logger *logrus.Logger
}

func NewLogrus(l *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{logger: l}
}

// NewLogrusWriter builds a logrus logger writing to w. json selects the JSON
// formatter, otherwise text with full timestamps.
func NewLogrusWriter(w io.Writer, level logrus.Level, json bool) *LogrusAdapter {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return NewLogrus(l)
}

func (a *LogrusAdapter) entry(component string, fields map[string]interface{}) *logrus.Entry {
	f := make(logrus.Fields, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["component"] = component
	return a.logger.WithFields(f)
}

func (a *LogrusAdapter) Info(component, message string, fields map[string]interface{}) {
	a.entry(component, fields).Info(message)
}

func (a *LogrusAdapter) Error(component string, err error, fields map[string]interface{}) {
	a.entry(component, fields).WithError(err).Error("operation failed")
}

func (a *LogrusAdapter) Warning(component, message string, fields map[string]interface{}) {
	a.entry(component, fields).Warn(message)
}

func (a *LogrusAdapter) Debug(component, message string, fields map[string]interface{}) {
	if !a.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	a.entry(component, fields).Debug(message)
}
