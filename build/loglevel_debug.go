//go:build debug

package build

// LogLevel specifies a debug logging level for stdout sub-loggers.
const LogLevel = "debug"
