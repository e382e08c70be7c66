package main

import (
	"fmt"
	"os"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		if isMalformed(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
