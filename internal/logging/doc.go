// Package logging wires log/slog with the console and JSON handlers used
// across clipsplit. Loggers carry standardized field names so the watch-mode
// output and the per-run log file stay greppable.
package logging
