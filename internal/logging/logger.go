package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger that writes JSON to the given log file path
// and also writes to stderr. Session name and PID are included as initial fields.
func New(logPath, sessionName string) (*zap.Logger, error) {
	return newLogger(logPath, sessionName, true)
}

// NewQuiet is New without the stderr core, for short-lived processes whose
// stderr belongs to the caller.
func NewQuiet(logPath, sessionName string) (*zap.Logger, error) {
	return newLogger(logPath, sessionName, false)
}

func newLogger(logPath, sessionName string, console bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.InfoLevel),
	}
	if console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stderr), zapcore.InfoLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.Fields(
			zap.String("session", sessionName),
			zap.Int("pid", os.Getpid()),
		),
	)

	return logger, nil
}
