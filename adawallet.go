package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/adasuite/adawallet/keystore"
	"github.com/adasuite/adawallet/rpc/keysvc"
)

var cfg *config

// shutdownChannel is closed once the main interrupt handler has finished
// running every registered callback and the process may exit.
var shutdownChannel = make(chan struct{})

func main() {
	// Work around defer not working after os.Exit.
	if err := walletMain(); err != nil {
		os.Exit(1)
	}
}

// walletMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at
// which point any defers have already run, and if the error is non-nil, the
// program can be exited with an error exit status.
func walletMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Show version at startup.
	log.Infof("Version %s", version())

	// Creation modes store a handler and exit without serving.
	if cfg.Create {
		if err := createKeyHandler(cfg); err != nil {
			log.Errorf("Unable to create key handler: %v", err)
			return err
		}
		return nil
	}
	if cfg.CreateName != "" {
		if err := createNonInteractive(cfg); err != nil {
			log.Errorf("Unable to create key handler: %v", err)
			return err
		}
		return nil
	}

	if cfg.NoServer {
		fmt.Fprintln(os.Stderr, "Nothing to do: no creation mode "+
			"requested and the RPC server is disabled")
		return nil
	}

	store, err := keystore.Open(keystorePath(cfg))
	if err != nil {
		log.Errorf("Unable to open keystore: %v", err)
		return err
	}

	server := keysvc.NewServer(store)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server,
	}

	addInterruptHandler(func() {
		log.Info("Stopping RPC server...")
		server.Stop()
		httpServer.Close()
		if err := store.Close(); err != nil {
			log.Errorf("Error closing keystore: %v", err)
		}
		log.Info("RPC server shutdown complete")
	})

	log.Infof("RPC server listening on %s", cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil &&
		err != http.ErrServerClosed {

		log.Errorf("RPC server error: %v", err)
		return err
	}

	<-shutdownChannel
	log.Info("Shutdown complete")
	return nil
}
