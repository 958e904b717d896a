package main

import (
	"os"
	"os/signal"
)

// interruptChannel is used to receive shutdown signals from the OS.
var interruptChannel chan os.Signal

// addHandlerChannel is used to add an interrupt handler to the list of
// handlers to be invoked on shutdown signals.
var addHandlerChannel = make(chan func())

// signals defines the signals that are handled to do a clean shutdown.
// Conditional compilation extends this to platform-specific signals.
var signals = []os.Signal{os.Interrupt}

// mainInterruptHandler listens for shutdown signals on the
// interruptChannel and invokes the registered interruptCallbacks
// accordingly.  It also listens for callback registration.  It must be run
// as a goroutine.
func mainInterruptHandler() {
	// interruptCallbacks is a list of callbacks to invoke when a shutdown
	// signal is received.
	var interruptCallbacks []func()

	// isShutdown is a flag which is used to indicate whether or not the
	// shutdown signal has already been received and hence any future
	// attempts to add a new interrupt handler should invoke them
	// immediately.
	var isShutdown bool

	for {
		select {
		case <-interruptChannel:
			// Ignore more than one shutdown signal.
			if isShutdown {
				log.Infof("Received signal. Already shutting down...")
				continue
			}

			isShutdown = true
			log.Infof("Received signal. Shutting down...")

			// Run handlers in LIFO order.
			for i := range interruptCallbacks {
				idx := len(interruptCallbacks) - 1 - i
				callback := interruptCallbacks[idx]
				callback()
			}

			// Signal the main goroutine to shutdown.
			go func() {
				shutdownChannel <- struct{}{}
			}()

		case handler := <-addHandlerChannel:
			// The shutdown signal has already been received, so
			// just invoke any new handlers immediately.
			if isShutdown {
				handler()
			}

			interruptCallbacks = append(interruptCallbacks, handler)
		}
	}
}

// addInterruptHandler adds a handler to call when a shutdown signal is
// received.
func addInterruptHandler(handler func()) {
	// Create the channel and start the main interrupt handler which
	// invokes all other callbacks and exits if not already done.
	if interruptChannel == nil {
		interruptChannel = make(chan os.Signal, 1)
		signal.Notify(interruptChannel, signals...)
		go mainInterruptHandler()
	}

	addHandlerChannel <- handler
}
