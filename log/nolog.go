// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

// NoLog is a no-op Logger, used where a caller does not want to configure
// structured logging (for example the round package's tests).
type NoLog struct{}

// NewNoOpLogger returns a Logger that discards everything it is given.
func NewNoOpLogger() Logger { return NoLog{} }

func (NoLog) Debug(msg string, kv ...interface{}) {}
func (NoLog) Info(msg string, kv ...interface{})  {}
func (NoLog) Warn(msg string, kv ...interface{})  {}
func (NoLog) Error(msg string, kv ...interface{}) {}
func (n NoLog) With(kv ...interface{}) Logger     { return n }
