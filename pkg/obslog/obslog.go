// Package obslog provides the structured logger used throughout the
// service: zap for the sink, wrapped in logr.Logger via zapr so that the
// rest of the code depends only on the logr interface.
package obslog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// New builds a logr.Logger backed by zap. debug selects zap's development
// config (console encoding, debug level, stack traces on warn) over its
// production config (JSON encoding, info level).
func New(debug bool) (logr.Logger, error) {
	var zlog *zap.Logger
	var err error
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zlog), nil
}

// Discard returns a logr.Logger that drops every record, for tests that
// don't care about log output.
func Discard() logr.Logger {
	return logr.Discard()
}
