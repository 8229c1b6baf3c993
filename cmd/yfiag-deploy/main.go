// Package main provides the yfiag-deploy CLI.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
