// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import "go.uber.org/zap"

// zapLogger adapts *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap builds a production zap logger and adapts it to Logger.
func NewZap() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: z.Sugar()}, nil
}

// WrapZap adapts an already-constructed zap logger.
func WrapZap(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}
