// Command tlmsim runs a transaction-level memory simulation: one initiator
// issuing random reads and writes to one memory target, through either
// blocking transport calls or direct memory access.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
