// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log provides the structured logger consumed across the consensus
// engine. It mirrors the shape of github.com/luxfi/log's Logger but trims
// the interface down to the handful of methods the round package actually
// calls.
package log

// Logger is the structured logging contract used throughout the module.
// Key-value pairs follow the zap.SugaredLogger convention: alternating
// key, value arguments.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
}
