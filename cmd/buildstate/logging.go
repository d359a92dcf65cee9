package main

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/go-containerregistry/pkg/logs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a console logger writing to w. stdout is never used so
// the query result stays clean. verbose also routes go-containerregistry's
// request logs through the same sink.
func newLogger(w io.Writer, verbose bool) (logr.Logger, func()) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	zl := zap.New(core)

	if warn, err := zap.NewStdLogAt(zl.Named("ggcr"), zapcore.WarnLevel); err == nil {
		logs.Warn = warn
	}
	if verbose {
		if debug, err := zap.NewStdLogAt(zl.Named("ggcr"), zapcore.DebugLevel); err == nil {
			logs.Debug = debug
		}
	}

	return zapr.NewLogger(zl), func() { _ = zl.Sync() }
}
