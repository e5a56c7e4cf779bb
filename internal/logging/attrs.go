package logging

import "log/slog"

// Shared attribute keys so log lines stay greppable across packages.
const (
	FieldComponent = "component"
	FieldCruiseID  = "cruise_id"
	FieldDataset   = "dataset"
	FieldRunID     = "run_id"
)

// WithComponent tags every record from the returned logger with a component
// name, which the console handler promotes into its bracketed slot.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, name))
}

// Error wraps an error for structured logging.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
