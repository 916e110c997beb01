package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "default"
	mu          sync.RWMutex
)

// Config описывает вывод логов: уровень, формат и (опционально) файл с ротацией.
type Config struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // json | console
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

func SetServiceName(newName string) string {
	mu.Lock()
	defer mu.Unlock()
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init собирает глобальные логгеры. До вызова Init все хелперы пишут в no-op логгер.
func Init(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}
	if cfg.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   cfg.Compress,
		}))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), zap.NewAtomicLevelAt(level))
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	InfoLogger = l
	FatalLogger = l
	mu.Unlock()

	return l, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if InfoLogger == nil {
		return zap.NewNop()
	}
	return InfoLogger.With(zap.String("service", serviceName))
}

func Debug(format string, args ...interface{}) {
	current().Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	current().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	current().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	current().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	mu.RLock()
	l, name := FatalLogger, serviceName
	mu.RUnlock()
	if l == nil {
		panic(fmt.Sprintf(format, args...))
	}

	l.With(
		zap.String("service", name),
	).Fatal(fmt.Sprintf(format, args...))
}

// Sync сбрасывает буферы; ошибки sync для stdout игнорируем.
func Sync() {
	mu.RLock()
	l := InfoLogger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
