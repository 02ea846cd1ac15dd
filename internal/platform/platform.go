// Package platform holds the thin OS-specific layer: advisory disk
// preallocation for files whose final size is known before writing.
package platform
