// Package services provides shared helpers for stage implementations:
// sentinel error markers, error wrapping with stage context, and context
// annotations used by structured logging.
package services
