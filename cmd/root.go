// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with ACLSCAN, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ACLSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/aclscan", "$HOME/.aclscan", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "aclscan",
		Short: "A folder permission scanner that turns Windows access control lists into readable reports",
		Long: `A folder permission scanner that turns Windows access control lists into readable reports.

aclscan reads the access control entries of the configured folders, resolves every
identity against the directory, expands group membership one level deep, and writes
CSV, HTML, and XML reports describing who holds which rights where.`,
	}
}
