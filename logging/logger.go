// Package logging builds the zap loggers used across the service.
//
// Library packages never construct loggers themselves: they accept a
// *zap.Logger and fall back to zap.NewNop() when given nil. Only main does
// the construction, through New.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names. Use these instead of raw strings so log queries
// work across packages.
const (
	FieldTrack     = "track"
	FieldCycle     = "cycle"
	FieldRank      = "rank"
	FieldRecordID  = "record_id"
	FieldRunID     = "run_id"
	FieldFeeders   = "feeders"
	FieldActive    = "active"
	FieldRetired   = "retired"
	FieldLeftover  = "leftover"
	FieldSlots     = "slots"
	FieldCycles    = "cycles"
	FieldCount     = "count"
	FieldPath      = "path"
	FieldAddress   = "address"
	FieldRequestID = "request_id"
)

// Options selects the output format and level.
type Options struct {
	// JSON selects production JSON output; otherwise a console encoder.
	JSON bool

	// Level is a zap level name ("debug", "info", "warn", "error").
	// Empty means info.
	Level string
}

// New builds a logger writing to stderr.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
	}

	if opts.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		return config.Build()
	}

	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoder),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
