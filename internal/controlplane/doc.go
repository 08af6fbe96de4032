// Package controlplane provides a typed HTTP client for the Tendril
// control plane: agent inventory listing and remote script execution.
package controlplane
