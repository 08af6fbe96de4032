// Package collector orchestrates a fleet collection batch: it resolves
// the dispatch set, runs the inventory script on each agent through a
// bounded worker pool, and merges results into the checkpoint.
package collector
