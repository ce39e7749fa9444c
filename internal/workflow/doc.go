// Package workflow advances queue items through the configured processing
// stages.
//
// The Manager polls the queue for stable statuses, reclaims stale work via
// heartbeats, and feeds items into registered stage handlers (prober,
// analyzer, splitter, exporter) while capturing progress and failure
// metadata. Stage handlers never touch the store directly during Execute;
// the manager persists transitions so a crash rolls the item back to the
// preceding stable status on restart.
package workflow
