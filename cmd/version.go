package cmd

import (
	"log"

	"github.com/aclscan/aclscan/internal/build"
	"github.com/spf13/cobra"
)

// NewVersionCommand returns the command to get the aclscan version.
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the aclscan version",
		Long:  "Return the aclscan version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("aclscan version %s commit id %s ", build.Version, build.Commit)
	return nil
}
