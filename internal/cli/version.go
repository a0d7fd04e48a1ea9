package cli

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var versionJSON bool

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			out, err := sonic.MarshalIndent(map[string]string{
				"version": buildVersion,
				"commit":  buildCommit,
				"date":    buildDate,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "bootstrap version %s (commit: %s, built: %s)\n", buildVersion, buildCommit, buildDate)
		return nil
	},
}
