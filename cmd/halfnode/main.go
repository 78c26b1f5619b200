package main

import (
	"errors"
	"fmt"
	"os"

	halfnode "github.com/TuringBitChain/TBCNODE"
	"github.com/TuringBitChain/TBCNODE/signal"
	flags "github.com/jessevdk/go-flags"
)

func main() {
	// Hook interceptor for os signals.
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// The loggers must exist before the debug level option is applied.
	halfnode.SetupLoggers(shutdownInterceptor)

	// Load the configuration, and parse any command line options. This
	// function will also set up logging properly.
	loadedConfig, err := halfnode.LoadConfig()
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			// Print error if not due to help request.
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Help was requested, exit normally.
		os.Exit(0)
	}

	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	err = halfnode.Main(
		loadedConfig, shutdownInterceptor.ShutdownChannel(),
	)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
