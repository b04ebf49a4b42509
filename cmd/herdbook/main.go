// Command herdbook runs pedigree analysis over a herd book from the command
// line or as an HTTP service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
