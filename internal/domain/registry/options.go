package registry

import "log/slog"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithBufferSize sets the [BACKPRESSURE] threshold: the number of frames a
// subscriber may have queued before it is considered too slow and dropped.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.bufferSize = size
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}
