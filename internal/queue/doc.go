// Package queue persists pipeline work items in SQLite. Each item tracks a
// source video through probe, analysis, split, and export, including progress
// detail for the CLI and heartbeats for stall detection.
package queue
