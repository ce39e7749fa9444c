// Package ffprobe shells out to ffprobe to inspect media containers. The
// probe stage uses it to confirm a source has an audio track and to learn the
// container duration that caps the last segment's end time.
package ffprobe
