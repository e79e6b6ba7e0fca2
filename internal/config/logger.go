// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

// NewLogger builds a zap logger: JSON for format "json", a development
// console encoder otherwise.
func NewLogger(cfg types.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, eris.Wrapf(types.ErrConfiguration, "log level %q", cfg.Level)
	}

	var zc zap.Config
	if strings.EqualFold(cfg.Format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, eris.Wrap(err, "building logger")
	}
	return logger, nil
}

// InitLogger installs the logger as zap's global and returns it so the
// caller can Sync it on exit.
func InitLogger(cfg types.LogConfig) (*zap.Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
