// Package ffmpeg cuts a source video into per-event files using ffmpeg
// stream copy. Segments are cut concurrently up to the configured limit and a
// failed segment is skipped rather than failing the whole batch.
package ffmpeg
