// Package logging builds the slog loggers used by the ochim command and the
// experiment runner: a terse console format with optional colour, or JSON.
package logging
