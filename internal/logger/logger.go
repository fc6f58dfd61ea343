package logger

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configured level name into a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch name {
	case "DEBUG", "debug":
		return DEBUG, nil
	case "INFO", "info":
		return INFO, nil
	case "WARN", "warn":
		return WARN, nil
	case "ERROR", "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", name)
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LogOutput represents where logs should be written
type LogOutput int

const (
	Console LogOutput = iota
	File
	Both
)

// ParseOutput converts a configured output name into a LogOutput.
func ParseOutput(name string) (LogOutput, error) {
	switch name {
	case "console":
		return Console, nil
	case "file":
		return File, nil
	case "both":
		return Both, nil
	default:
		return Console, fmt.Errorf("invalid log output: %s", name)
	}
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level       LogLevel
	Output      LogOutput
	FilePath    string
	IncludeTime bool
	Structured  bool
}

// Logger is a leveled logger that takes its fields as a map.
type Logger struct {
	zl   *zap.Logger
	file *os.File
}

// NewLogger creates a new Logger instance with the provided configuration
func NewLogger(config LoggerConfig) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if !config.IncludeTime {
		encCfg.TimeKey = ""
	}

	var encoder zapcore.Encoder
	if config.Structured {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	l := &Logger{}
	var sinks []zapcore.WriteSyncer
	if config.Output == Console || config.Output == Both {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	if config.Output == File || config.Output == Both {
		if config.FilePath == "" {
			config.FilePath = "ketohub.log"
		}
		file, err := os.OpenFile(config.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to open log file %s", config.FilePath)
		}
		l.file = file
		sinks = append(sinks, zapcore.Lock(file))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), config.Level.zapLevel())
	l.zl = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return l, nil
}

// NewWithCore builds a Logger around an existing zap core.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zl: zap.New(core, zap.AddCallerSkip(1))}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// Close flushes buffered entries and closes the log file, if any
func (l *Logger) Close() error {
	_ = l.zl.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With(toZap(fields)...), file: nil}
}

func toZap(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func first(fields []map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	return toZap(fields[0])
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.zl.Debug(message, first(fields)...)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.zl.Info(message, first(fields)...)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.zl.Warn(message, first(fields)...)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.zl.Error(message, first(fields)...)
}

// ErrorWithStack logs an error together with its eris stack, when it carries one.
func (l *Logger) ErrorWithStack(err error, message string, fields ...map[string]interface{}) {
	zf := append(first(fields),
		zap.NamedError("error", err),
		zap.String("stackTrace", eris.ToString(err, true)),
	)
	l.zl.Error(message, zf...)
}

// Progress logs progress information for long-running operations
func (l *Logger) Progress(operation string, current, total int, fields ...map[string]interface{}) {
	percentage := 0
	if total > 0 {
		percentage = (current * 100) / total
	}

	zf := append(first(fields),
		zap.String("operation", operation),
		zap.Int("current", current),
		zap.Int("total", total),
		zap.Int("percentage", percentage),
	)
	l.zl.Info(fmt.Sprintf("Progress: %s - %d/%d", operation, current, total), zf...)
}
