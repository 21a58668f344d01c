package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options описывает, куда и в каком формате пишутся логи.
type Options struct {
	Mode       string // development | production
	Level      string
	File       string // пусто - только консоль
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type BaseLogger struct {
	mu     sync.Mutex
	prefix string
	sugar  *zap.SugaredLogger
}

// NewLogger пишет в консоль и дополнительно в writer, если он задан.
func NewLogger(writer io.Writer, prefix string) *BaseLogger {
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zapcore.InfoLevel,
		),
	}
	if writer != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(writer),
			zapcore.InfoLevel,
		))
	}
	return &BaseLogger{
		prefix: prefix,
		sugar:  zap.New(zapcore.NewTee(cores...)).Sugar(),
	}
}

// New строит логгер из настроек приложения. При заданном File логи
// ротируются через lumberjack.
func New(opts Options, prefix string) *BaseLogger {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(strings.ToLower(opts.Level)); err != nil {
			level = zapcore.InfoLevel
		}
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if opts.Mode == "production" {
		consoleEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 64),
			MaxBackups: orDefault(opts.MaxBackups, 7),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	return &BaseLogger{
		prefix: prefix,
		sugar:  zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2)).Sugar(),
	}
}

// NewNop глушит вывод, используется в тестах.
func NewNop() *BaseLogger {
	return &BaseLogger{sugar: zap.NewNop().Sugar()}
}

func (l *BaseLogger) Log(format string, v ...interface{}) {
	l.write(zapcore.InfoLevel, format, v...)
}

func (l *BaseLogger) Warn(format string, v ...interface{}) {
	l.write(zapcore.WarnLevel, format, v...)
}

func (l *BaseLogger) Error(format string, v ...interface{}) {
	l.write(zapcore.ErrorLevel, format, v...)
}

func (l *BaseLogger) write(level zapcore.Level, format string, v ...interface{}) {
	l.mu.Lock()
	prefix := l.prefix
	l.mu.Unlock()

	if prefix != "" {
		format = prefix + " " + format
	}
	switch level {
	case zapcore.WarnLevel:
		l.sugar.Warnf(format, v...)
	case zapcore.ErrorLevel:
		l.sugar.Errorf(format, v...)
	default:
		l.sugar.Infof(format, v...)
	}
}

func (l *BaseLogger) WithPrefix(extraPrefix string) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := extraPrefix
	if l.prefix != "" {
		prefix = l.prefix + " " + extraPrefix
	}
	return &BaseLogger{prefix: prefix, sugar: l.sugar}
}

func (l *BaseLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

// Sync сбрасывает буферы zap перед завершением процесса.
func (l *BaseLogger) Sync() error {
	return l.sugar.Sync()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
