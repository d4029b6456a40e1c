package logger

import "go.uber.org/zap"

// NewLogger builds the production zap logger shared by every entry point.
func NewLogger(service string) *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l.With(zap.String("service", service))
}
