package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// #region new

// New builds a JSON logger at level writing to stderr and, when filePath is non-empty,
// to a rotated log file as well. Unknown levels fall back to info.
func New(level, filePath string) *zap.Logger {
	zapLevel := parseLevel(level)
	encoder := jsonEncoder()

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapLevel),
	}
	if filePath != "" {
		cores = append(cores, fileCore(encoder, filePath, zapLevel))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// NewFileOnly builds a logger that writes only to a rotated file, for interactive
// tools whose stdout/stderr belong to the user.
func NewFileOnly(level, filePath string) *zap.Logger {
	if filePath == "" {
		return zap.NewNop()
	}
	return zap.New(fileCore(jsonEncoder(), filePath, parseLevel(level)), zap.AddCaller())
}

// #endregion new

// #region cores

func parseLevel(level string) zapcore.Level {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return zapLevel
}

func jsonEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = "caller"
	return zapcore.NewJSONEncoder(encoderConfig)
}

func fileCore(encoder zapcore.Encoder, filePath string, level zapcore.Level) zapcore.Core {
	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(rotator), level)
}

// #endregion cores
