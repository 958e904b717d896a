package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	flags "github.com/jessevdk/go-flags"
)

const defaultConfigFilename = "adawalletctl.conf"

var defaultConfigFile = filepath.Join(ctlHomeDir(), defaultConfigFilename)

// config defines the configuration options for adawalletctl.
type config struct {
	ShowVersion  bool   `short:"V" long:"version" description:"Display version information and exit"`
	ListCommands bool   `short:"l" long:"listcommands" description:"List all of the supported commands and exit"`
	ConfigFile   string `short:"C" long:"configfile" description:"Path to configuration file"`
	RPCServer    string `short:"s" long:"rpcserver" description:"Websocket RPC server to connect to"`
}

// ctlHomeDir returns the default data directory of the companion server,
// which is where the client looks for its own config file.
func ctlHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "adawallet")
		}
		return filepath.Join(homeDir, "adawallet")
	case "darwin":
		return filepath.Join(homeDir, "Library",
			"Application Support", "adawallet")
	default:
		return filepath.Join(homeDir, ".adawallet")
	}
}

// loadConfig initializes and parses the config using a config file and
// command line options.
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile: defaultConfigFile,
		RPCServer:  "localhost:8337",
	}

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
		fmt.Printf("%s version %s\n", filepath.Base(os.Args[0]), version())
		os.Exit(0)
	}

	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
		// Missing config file is fine when the default was used.
		if preCfg.ConfigFile != defaultConfigFile {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
