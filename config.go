package halfnode

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/TuringBitChain/TBCNODE/build"
	"github.com/TuringBitChain/TBCNODE/hncfg"
	"github.com/TuringBitChain/TBCNODE/hnwire"
	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "halfnode.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "halfnode.log"
	defaultLogLevel       = "info"
	defaultHost           = "127.0.0.1"

	// showSubsystems is the debug level that lists the subsystems.
	showSubsystems = "show"
)

var (
	// DefaultHalfNodeDir is the default directory of the config file and
	// the logs.
	DefaultHalfNodeDir = btcutil.AppDataDir("halfnode", false)

	// DefaultConfigFile is the default full path of the config file.
	DefaultConfigFile = filepath.Join(
		DefaultHalfNodeDir, defaultConfigFilename,
	)

	defaultLogDir = filepath.Join(DefaultHalfNodeDir, defaultLogDirname)

	// errNoHost is returned when no node to connect to is configured.
	errNoHost = errors.New("no node host configured")
)

// Config is the configuration of a half-node session.
//
//nolint:lll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	HalfNodeDir string `long:"halfnodedir" description:"The base directory that contains the config file and the logs."`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Host      string   `long:"host" description:"IPv4 address or host name of the node to connect to."`
	Port      uint16   `long:"port" description:"P2P port of the node. Defaults to the port of the network."`
	Network   string   `long:"network" description:"The network the node runs on." choice:"mainnet" choice:"testnet3" choice:"stn" choice:"regtest"`
	Services  uint64   `long:"services" description:"Service bits advertised in our version message."`
	UserAgent string   `long:"useragent" description:"User agent advertised in our version message. Defaults to the half-node's own."`
	Send      []string `long:"send" description:"Message to send and sync on after the handshake. May be repeated." choice:"getaddr" choice:"mempool" choice:"sendheaders"`
	OneShot   bool     `long:"oneshot" description:"Exit after the handshake and the initial sync instead of staying connected until shutdown."`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	RPC *hncfg.RPC `group:"rpc" namespace:"rpc"`

	Sync *hncfg.Sync `group:"sync" namespace:"sync"`

	HealthChecks *hncfg.HealthCheckConfig `group:"healthcheck" namespace:"healthcheck"`

	Prometheus hncfg.Prometheus `group:"prometheus" namespace:"prometheus"`

	// ActiveNet is the network parsed from Network.
	ActiveNet hnwire.Network

	// LogWriter is the rotated log file all subsystem loggers write to.
	// It is nil until the log rotator is initialized.
	LogWriter *build.RotatingLogWriter
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		HalfNodeDir:  DefaultHalfNodeDir,
		ConfigFile:   DefaultConfigFile,
		LogDir:       defaultLogDir,
		DebugLevel:   defaultLogLevel,
		Host:         defaultHost,
		Network:      string(hnwire.RegTest),
		Services:     uint64(hnwire.SFNodeNetwork),
		LogConfig:    build.DefaultLogConfig(),
		RPC:          &hncfg.RPC{},
		Sync:         hncfg.DefaultSync(),
		HealthChecks: hncfg.DefaultHealthCheck(),
		Prometheus:   hncfg.DefaultPrometheus(),
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", hnwire.MySubVersion,
			"protocol", hnwire.MyVersion)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their halfnodedir, then we should assume they intend to
	// use the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.HalfNodeDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultHalfNodeDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, defaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg, usageMessage)
	if err != nil {
		return nil, err
	}

	// Logs only reach the file from here on.
	logFile := filepath.Join(cleanCfg.LogDir, defaultLogFilename)
	err = logRotator.InitLogRotator(cleanCfg.LogConfig, logFile, logWriter)
	if err != nil {
		return nil, err
	}
	cleanCfg.LogWriter = logRotator

	// Warn about missing config file only after all other configuration
	// is done. This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		hnodLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. This makes sure
// no illegal values or combination of values are set. All file system paths
// are normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	const funcName = "ValidateConfig"
	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf(funcName+": "+format, args...)
	}

	// If the provided half-node directory is not the default, the logs
	// live within it.
	halfNodeDir := CleanAndExpandPath(cfg.HalfNodeDir)
	if halfNodeDir != DefaultHalfNodeDir && cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(halfNodeDir, defaultLogDirname)
	}
	cfg.HalfNodeDir = halfNodeDir
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)
	cfg.RPC.CertPath = CleanAndExpandPath(cfg.RPC.CertPath)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == showSubsystems {
		fmt.Println("Supported subsystems",
			subLoggers.SupportedSubsystems())
		os.Exit(0)
	}

	if cfg.Host == "" {
		return nil, mkErr("%w", errNoHost)
	}

	net, err := hnwire.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, mkErr("%v", err)
	}
	cfg.ActiveNet = net

	if err := cfg.LogConfig.Validate(); err != nil {
		return nil, mkErr("error validating logging config: %w", err)
	}
	if err := cfg.RPC.Validate(); err != nil {
		return nil, mkErr("error validating rpc config: %w", err)
	}
	if err := cfg.Sync.Validate(); err != nil {
		return nil, mkErr("error validating sync config: %w", err)
	}
	if err := cfg.HealthChecks.Validate(); err != nil {
		return nil, mkErr("error validating health checks: %w", err)
	}
	if err := cfg.Prometheus.Validate(); err != nil {
		return nil, mkErr("error validating prometheus config: %w",
			err)
	}

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, subLoggers)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, usageMessage)
		return nil, mkErr("error parsing debug level: %w", err)
	}

	return &cfg, nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
