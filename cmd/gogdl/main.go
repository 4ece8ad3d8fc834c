package main

import (
	"os"

	"github.com/cmykflutterby/GogDownloader/internal/cli"
)

// Version fallback for non-Makefile builds; releases inject these via
// LDFLAGS.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
