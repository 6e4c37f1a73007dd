package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFile = "playlistchecker.log"

// NewLogger writes JSON lines to a rotating file under logDir. With console
// set, the same entries are also printed to stderr in console format.
func NewLogger(logDir string, console bool) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFile),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel)

	if console {
		ccfg := zap.NewDevelopmentEncoderConfig()
		ccfg.TimeKey = "ts"
		ccfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cc := zapcore.NewCore(zapcore.NewConsoleEncoder(ccfg), zapcore.Lock(os.Stderr), zap.InfoLevel)
		core = zapcore.NewTee(core, cc)
	}
	return zap.New(core), nil
}
