package logger

import (
	"io"
	"net"
	"strings"

	logstash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/sirupsen/logrus"
)

type Logger interface {
	SetLogLevel(level string)

	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	Debug(msg string, fields ...Field)

	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Debugf(format string, args ...interface{})

	SweetenFields(args []interface{}) []Field
}

// Field is a single structured key/value attached to a log line.
type Field struct {
	Key string
	Val interface{}
}

func WithField(key string, val interface{}) Field {
	return Field{Key: key, Val: val}
}

type LogrusLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

var _ Logger = (*LogrusLogger)(nil)

// NewLogrusLogger returns a JSON logger tagged with the given component name.
func NewLogrusLogger(component string, out io.Writer) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	if out != nil {
		l.SetOutput(out)
	}
	return &LogrusLogger{
		logger: l,
		fields: logrus.Fields{"component": component},
	}
}

// NewLogstashLogger behaves like NewLogrusLogger and also ships every entry to a
// logstash input over conn.
func NewLogstashLogger(component string, out io.Writer, conn net.Conn) Logger {
	l := NewLogrusLogger(component, out).(*LogrusLogger)
	l.logger.Hooks.Add(logstash.New(conn, logstash.DefaultFormatter(logrus.Fields{
		"component": component,
	})))
	return l
}

func (l *LogrusLogger) SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		l.logger.SetLevel(logrus.DebugLevel)
	case "info":
		l.logger.SetLevel(logrus.InfoLevel)
	case "warn":
		l.logger.SetLevel(logrus.WarnLevel)
	case "error":
		l.logger.SetLevel(logrus.ErrorLevel)
	case "fatal":
		l.logger.SetLevel(logrus.FatalLevel)
	default:
		l.logger.SetLevel(logrus.InfoLevel)
	}
}

func (l *LogrusLogger) Info(msg string, fields ...Field) {
	l.entry(fields...).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, fields ...Field) {
	l.entry(fields...).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, fields ...Field) {
	l.entry(fields...).Error(msg)
}

func (l *LogrusLogger) Fatal(msg string, fields ...Field) {
	l.entry(fields...).Fatal(msg)
}

func (l *LogrusLogger) Debug(msg string, fields ...Field) {
	l.entry(fields...).Debug(msg)
}

func (l *LogrusLogger) Infof(format string, args ...interface{}) {
	l.entry().Infof(format, args...)
}

func (l *LogrusLogger) Warnf(format string, args ...interface{}) {
	l.entry().Warnf(format, args...)
}

func (l *LogrusLogger) Errorf(format string, args ...interface{}) {
	l.entry().Errorf(format, args...)
}

func (l *LogrusLogger) Fatalf(format string, args ...interface{}) {
	l.entry().Fatalf(format, args...)
}

func (l *LogrusLogger) Debugf(format string, args ...interface{}) {
	l.entry().Debugf(format, args...)
}

func (l *LogrusLogger) SweetenFields(args []interface{}) []Field {
	if len(args) == 0 {
		return []Field{}
	}

	var (
		fields    = make([]Field, 0, len(args))
		seenError bool
	)

	for i := 0; i < len(args); {
		if f, ok := args[i].(Field); ok {
			fields = append(fields, f)
			i++
			continue
		}

		if err, ok := args[i].(error); ok {
			if !seenError {
				seenError = true
				fields = append(fields, WithField("error", err))
			}
			i++
			continue
		}
		if i == len(args)-1 {
			break
		}

		key, val := args[i], args[i+1]
		if keyStr, ok := key.(string); ok {
			fields = append(fields, WithField(keyStr, val))
		}
		i += 2
	}
	return fields
}

func (l *LogrusLogger) entry(fields ...Field) *logrus.Entry {
	return l.logger.WithFields(l.fmtFields(fields...))
}

func (l *LogrusLogger) fmtFields(fields ...Field) logrus.Fields {
	fieldsMap := make(logrus.Fields, len(fields)+len(l.fields))
	for k, v := range l.fields {
		fieldsMap[k] = v
	}
	for _, field := range fields {
		fieldsMap[field.Key] = field.Val
	}
	return fieldsMap
}
