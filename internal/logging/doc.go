// Package logging provides the slog-based logging facade for mediacat.
//
// Loggers are built from the application configuration: a console handler for
// interactive use, a JSON handler for machine consumption, and an optional log
// file under the configured log folder. Components attach themselves with
// NewComponentLogger so every line carries its origin.
package logging
