package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clipsplit/internal/queue"
)

// enqueueOutcome describes what enqueueVideo did with the path.
type enqueueOutcome int

const (
	enqueueCreated enqueueOutcome = iota
	enqueueExisting
	enqueueRequeued
)

// enqueueVideo adds a video file to the queue. A path that is pending or in
// flight returns the existing item untouched; a path that already completed
// is reset to pending so the video runs through the pipeline again.
func enqueueVideo(ctx context.Context, store *queue.Store, path string) (*queue.Item, enqueueOutcome, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, enqueueExisting, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, enqueueExisting, fmt.Errorf("video %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, enqueueExisting, fmt.Errorf("video %s is a directory", path)
	}

	existing, err := store.FindBySourcePath(ctx, absPath)
	if err != nil {
		return nil, enqueueExisting, err
	}
	if existing != nil {
		if existing.Status != queue.StatusCompleted {
			return existing, enqueueExisting, nil
		}
		existing.ResetForReprocessing()
		if err := store.Update(ctx, existing); err != nil {
			return nil, enqueueExisting, err
		}
		return existing, enqueueRequeued, nil
	}

	item, err := store.NewVideo(ctx, absPath)
	if err != nil {
		return nil, enqueueExisting, err
	}
	return item, enqueueCreated, nil
}
