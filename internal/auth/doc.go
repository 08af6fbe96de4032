// Package auth mints the bearer tokens the collector presents to the
// Tendril control plane, using the same HS256 scheme the gateway verifies.
package auth
