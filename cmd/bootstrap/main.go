package main

import (
	"fmt"
	"os"

	"bootstrap-core/internal/cli"
	"bootstrap-core/internal/di"
)

// version, commit, and date are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	di.RegisterEntryTypes(di.DescribeFunc(func() *cli.BuildInfo {
		return &cli.BuildInfo{Version: version, Commit: commit, Date: date}
	}))

	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
