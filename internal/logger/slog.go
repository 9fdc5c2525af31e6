package logger

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

// Slog returns a slog.Logger writing to the same core as z, for the
// engine, the mirror and the buses, which log through slog.
func Slog(z *zap.Logger, name string) *slog.Logger {
	return slog.New(zapslog.NewHandler(z.Core(),
		zapslog.WithName(name),
		zapslog.WithCaller(true),
	))
}
