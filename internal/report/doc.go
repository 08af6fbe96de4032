// Package report prints streaming per-task progress and the final batch
// tally to the console.
package report
