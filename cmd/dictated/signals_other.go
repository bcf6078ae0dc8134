//go:build !unix

package main

import "os"

// No runtime control signals outside Unix; the channel stays silent.
func notifyControl() chan os.Signal {
	return make(chan os.Signal)
}

func isModeCycle(os.Signal) bool { return false }

func isModeCycleBack(os.Signal) bool { return false }

func isFlush(os.Signal) bool { return false }
