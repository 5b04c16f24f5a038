package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "0.4.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build string",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jaybrain %s (%s, %s/%s)\n",
			version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
