// Package main is the entry point for the auth service.
package main

import (
	"fmt"
	"os"

	"auth-service/app"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	app.Version = version

	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
