package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"bootstrap-core/internal/app"
	"bootstrap-core/internal/di"
)

var registryJSON bool

func init() {
	registryCmd.Flags().BoolVar(&registryJSON, "json", false, "Print entries as JSON")
	rootCmd.AddCommand(registryCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Build the registry and list its entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		host, err := app.Bootstrap(cmd.Context(), settings, nil, di.WithoutPublish())
		if err != nil {
			return err
		}

		entries := host.Registry.Entries()
		out := cmd.OutOrStdout()

		if registryJSON {
			data, err := sonic.MarshalIndent(entries, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling entries: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tCONCRETE\tLIFETIME\tPHASE")
		for _, e := range entries {
			key := e.Key
			if e.Parameterized {
				key += "[T]"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, e.Concrete, e.Lifetime, e.Phase)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d entries (registry %s)\n", len(entries), host.Registry.ID())
		return nil
	},
}
