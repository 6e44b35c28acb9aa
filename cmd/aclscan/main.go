package main

import (
	"os"

	"github.com/aclscan/aclscan/cmd"
	"github.com/aclscan/aclscan/cmd/scan"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	scanCmd := scan.NewScanCommand()
	rootCmd.AddCommand(scanCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
