// Package store persists the collection run history: one row per batch,
// tallies only, never per-host state.
package store
