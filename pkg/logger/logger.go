// Package logger provides opinionated logging capabilities for foodlens
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a colourised console logger writing to stdout.
func NewLogger(debug bool) *zap.Logger {
	return New(Options{Debug: debug})
}

// Options configures New.
type Options struct {
	Debug bool

	// JSON switches to the production JSON encoder without colours.
	JSON bool

	// Output defaults to os.Stdout. The MCP server must log elsewhere since
	// stdout carries the protocol.
	Output io.Writer
}

// New builds a logger from opts.
func New(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)

	return zap.New(core, zap.AddCaller())
}
