// Package version holds the build version, overridden via -ldflags.
package version

// Version is the current application version.
var Version = "v0.1.0-dev"
