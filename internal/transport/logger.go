package transport

import "log/slog"

// backendLogger scopes log output to one transport backend.
func backendLogger(backend string, attrs ...any) *slog.Logger {
	logger := slog.With("component", "transport", "backend", backend)
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}

	return logger
}
