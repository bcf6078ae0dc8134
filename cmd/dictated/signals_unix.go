//go:build unix

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifyControl registers the runtime control signals. SIGUSR1 and
// SIGUSR2 cycle the correction mode forward and backward; SIGHUP
// flushes the stream.
func notifyControl() chan os.Signal {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, unix.SIGUSR1, unix.SIGUSR2, unix.SIGHUP)
	return ch
}

func isModeCycle(sig os.Signal) bool {
	return sig == unix.SIGUSR1
}

func isModeCycleBack(sig os.Signal) bool {
	return sig == unix.SIGUSR2
}

func isFlush(sig os.Signal) bool {
	return sig == unix.SIGHUP
}
