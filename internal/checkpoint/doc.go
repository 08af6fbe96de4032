// Package checkpoint persists per-host collection results as a single
// human-inspectable JSON file, enabling resumable batches.
package checkpoint
