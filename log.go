package halfnode

import (
	"github.com/TuringBitChain/TBCNODE/build"
	"github.com/TuringBitChain/TBCNODE/monitoring"
	"github.com/TuringBitChain/TBCNODE/netloop"
	"github.com/TuringBitChain/TBCNODE/noderpc"
	"github.com/TuringBitChain/TBCNODE/peer"
	"github.com/TuringBitChain/TBCNODE/signal"
	"github.com/btcsuite/btclog"
)

// Subsystem defines the logging code of the daemon itself.
const Subsystem = "HNOD"

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it write to the backend. When adding new subsystems,
// add them to SetupLoggers.
//
// Loggers only write to the log file once the log rotator has been
// initialized, which ValidateConfig does.
var (
	logWriter = &build.LogWriter{}

	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter)

	// logRotator feeds logWriter into the rotated log file. It should be
	// closed on shutdown.
	logRotator = build.NewRotatingLogWriter()

	// subLoggers holds every subsystem logger so their levels can be
	// set from the debug level option.
	subLoggers = build.SubLoggers{}

	hnodLog = build.NewSubLogger(Subsystem, nil)
)

// SetupLoggers initializes all package-global logger variables. Critical
// messages logged by any subsystem request a shutdown from interceptor.
func SetupLoggers(interceptor signal.Interceptor) {
	genLogger := genSubLogger(interceptor)

	hnodLog = build.NewSubLogger(Subsystem, genLogger)
	subLoggers[Subsystem] = hnodLog

	AddSubLogger(genLogger, peer.Subsystem, peer.UseLogger)
	AddSubLogger(genLogger, netloop.Subsystem, netloop.UseLogger)
	AddSubLogger(genLogger, noderpc.Subsystem, noderpc.UseLogger)
	AddSubLogger(genLogger, monitoring.Subsystem, monitoring.UseLogger)
	AddSubLogger(genLogger, signal.Subsystem, signal.UseLogger)
}

// genSubLogger creates a sub logger generator that writes to the backend
// and shuts the daemon down on critical messages.
func genSubLogger(interceptor signal.Interceptor) func(string) btclog.Logger {
	return func(tag string) btclog.Logger {
		return build.NewShutdownLogger(
			backendLog.Logger(tag), interceptor.RequestShutdown,
		)
	}
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of a subsystem.
func AddSubLogger(genLogger func(string) btclog.Logger, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	logger := build.NewSubLogger(subsystem, genLogger)
	subLoggers[subsystem] = logger
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so don't have to be performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
