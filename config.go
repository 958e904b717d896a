package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	flags "github.com/jessevdk/go-flags"

	"github.com/adasuite/adawallet/internal/cfgutil"
)

const (
	defaultConfigFilename = "adawallet.conf"
	defaultLogFilename    = "adawallet.log"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultKeystoreName   = "keys.db"
	defaultListen         = "localhost:8337"
)

var defaultAppDataDir = appDataDir("adawallet")

// config defines the configuration options for the key service.  See
// loadConfig for details on the parsing hierarchy.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir  string `short:"A" long:"appdata" description:"Application data directory for key handlers and logs"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	Create        bool             `long:"create" description:"Create a new key handler interactively and exit"`
	CreateName    string           `long:"createname" description:"Name to store a non-interactively created handler under"`
	CreateEntropy *cfgutil.HexFlag `long:"createentropy" description:"Hex wallet entropy for non-interactive handler creation"`

	Listen   string `long:"listen" description:"Interface and port to listen for websocket RPC connections"`
	NoServer bool   `long:"noserver" description:"Do not start the RPC server"`
}

// appDataDir returns an operating system specific data directory for the
// application name.
func appDataDir(appName string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(homeDir, appName)
	case "darwin":
		return filepath.Join(homeDir, "Library",
			"Application Support", appName)
	default:
		return filepath.Join(homeDir, "."+appName)
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile: filepath.Join(defaultAppDataDir, defaultConfigFilename),
		AppDataDir: defaultAppDataDir,
		LogDir:     filepath.Join(defaultAppDataDir, defaultLogDirname),
		DebugLevel: defaultLogLevel,
		Listen:     defaultListen,
	}

	// Pre-parse the command line options to see if an alternative config
	// file was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go %s %s/%s)\n",
			filepath.Base(os.Args[0]), version(), runtime.Version(),
			runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := cleanAndExpandPath(preCfg.ConfigFile)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		// Missing config file is fine when the default was used.
		if preCfg.ConfigFile != filepath.Join(defaultAppDataDir,
			defaultConfigFilename) {

			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	cfg.AppDataDir = cleanAndExpandPath(cfg.AppDataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	if err := checkCreateDir(cfg.AppDataDir); err != nil {
		return nil, nil, err
	}

	// Non-interactive creation requires both a name and entropy; either
	// alone is a mistake worth stopping for.
	if (cfg.CreateName != "") != (cfg.CreateEntropy != nil) {
		err := fmt.Errorf("--createname and --createentropy must be " +
			"specified together")
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Initialize log rotation and set the requested logging level.  After
	// this point the standard log output paths are operational.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", "loadConfig", err.Error())
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
