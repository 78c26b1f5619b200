//go:build !debug

package build

// LogLevel specifies the level stdout sub-loggers start at.
const LogLevel = "info"
