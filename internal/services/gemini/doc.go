// Package gemini analyzes videos with the Gemini API: it uploads the file,
// waits for the upload to become usable, runs the segmentation prompt against
// it, and returns the model's reply text. Transient API failures are retried
// with exponential backoff.
package gemini
