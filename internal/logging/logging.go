// Package logging builds the server's zap loggers, each backed by a
// lumberjack rotating file plus a console tee, directly adapted from
// the teacher's src/common/serverlog.go (createErrorLoger/createLogger).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"loopkv/internal/config"
)

func levelFromString(s string) zapcore.Level {
	switch s {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "warn", "WARN":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	case "dpanic", "DPANIC":
		return zapcore.DPanicLevel
	case "panic", "PANIC":
		return zapcore.PanicLevel
	case "fatal", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.ConsoleSeparator = "\t"
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.EncodeDuration = zapcore.SecondsDurationEncoder
	ec.EncodeName = zapcore.FullNameEncoder
	ec.FunctionKey = "func"
	return ec
}

func errorCore(lc *config.LogConfig) zapcore.Core {
	writer := &lumberjack.Logger{
		Filename:  lc.Path + "/error.log",
		MaxSize:   lc.MaxSizeMB,
		MaxAge:    lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		LocalTime: true,
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(writer), zap.ErrorLevel)
}

// New builds one named logger: file + console tee at its configured
// level, plus an always-on error tee so error-and-above lines also land
// in logs/error.log regardless of the logger's own level.
func New(lc *config.LogConfig, name string, errCore zapcore.Core) *zap.SugaredLogger {
	levelName := lc.Levels[name]
	if levelName == "" {
		levelName = lc.DefaultLevel
	}
	atomicLevel := zap.NewAtomicLevel()
	atomicLevel.SetLevel(levelFromString(levelName))

	writer := &lumberjack.Logger{
		Filename:   lc.Path + "/" + name + ".log",
		MaxSize:    lc.MaxSizeMB,
		MaxAge:     lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		LocalTime:  true,
	}
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(writer), atomicLevel)
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), atomicLevel)

	tee := zapcore.NewTee(fileCore, consoleCore, errCore)
	logger := zap.New(tee, zap.AddCaller(), zap.AddStacktrace(zap.FatalLevel))
	return logger.Sugar()
}

// Loggers bundles the named loggers the server wires into its
// components, mirroring the teacher's net/db logger split.
type Loggers struct {
	Server *zap.SugaredLogger
	Store  *zap.SugaredLogger
	Net    *zap.SugaredLogger
}

// Init builds the full set of named loggers from a LogConfig.
func Init(lc *config.LogConfig) *Loggers {
	if lc.MaxSizeMB == 0 {
		lc.MaxSizeMB = 100
	}
	if lc.MaxAgeDays == 0 {
		lc.MaxAgeDays = 5
	}
	if lc.MaxBackups == 0 {
		lc.MaxBackups = 10
	}
	errCore := errorCore(lc)
	return &Loggers{
		Server: New(lc, "server", errCore),
		Store:  New(lc, "store", errCore),
		Net:    New(lc, "net", errCore),
	}
}
