// Package log is the structured diagnostic logger shared by all commands.
// User-facing progress stays on stderr through fmt; this logger records
// events worth keeping (dropped frames, worker faults, store failures).
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = logrus.New()
	once   sync.Once
)

type Fields = logrus.Fields

// Options configures the logger. Zero values keep the defaults.
type Options struct {
	Level   string // logrus level name, "info" if empty
	File    string // rotating log file, disabled if empty
	NoColor bool
}

// Setup configures the package logger. Only the first call takes effect.
func Setup(opts Options) (*logrus.Logger, error) {
	var setupErr error
	once.Do(func() {
		level := logrus.InfoLevel
		if opts.Level != "" {
			parsed, err := logrus.ParseLevel(opts.Level)
			if err != nil {
				setupErr = fmt.Errorf("invalid log level %q: %w", opts.Level, err)
				return
			}
			level = parsed
		}
		logger.SetLevel(level)

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        opts.NoColor,
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			FieldsOrder:     []string{"run_id", "caller"},
		})

		writers := []io.Writer{os.Stderr}
		if opts.File != "" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			})
		}
		logger.SetOutput(io.MultiWriter(writers...))
	})
	return logger, setupErr
}

// Logger returns the package logger, configured or not.
func Logger() *logrus.Logger { return logger }

// NewRunID returns an identifier attached to every entry of one CLI run.
func NewRunID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "unknown"
	}
	return id.String()
}

func Debug(fields Fields, msg string) {
	entry(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	entry(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	entry(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	entry(fields).Error(msg)
}

// entry attaches fields and, at debug level, the file:line of the helper's caller.
// logrus' own caller reporting would always name this file.
func entry(fields Fields) *logrus.Entry {
	e := logger.WithFields(orEmpty(fields))
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if _, file, line, ok := runtime.Caller(2); ok {
			e = e.WithField("caller", fmt.Sprintf("%s:%d", path.Base(file), line))
		}
	}
	return e
}

func orEmpty(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}
	return fields
}
