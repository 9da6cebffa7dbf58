// Package logging builds the slog loggers used across governor.
//
// It provides a console handler for interactive use, a JSON handler for
// machine-readable logs, standardized field keys, and attr helpers so call
// sites stay terse. Tests use NewNop.
package logging
