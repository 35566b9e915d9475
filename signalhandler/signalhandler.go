package signalhandler

import (
	"os"
	"os/signal"
	"syscall"

	"layoutdedupe/logging"
)

// SetupHandler configures signal handling for safer interaction with the
// OpenCV and Tesseract C libraries.
func SetupHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			logging.Close()
			os.Exit(0)
		}
	}()
}
