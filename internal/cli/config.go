package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bootstrap-core/internal/app"
	"bootstrap-core/internal/config"
	"bootstrap-core/internal/di"
)

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing configuration")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the persisted host configuration",
	Long:  `Read and write the host configuration stored in the config slot (BOOTSTRAP_CONFIG_PATH).`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the host configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := bootstrapQuiet(cmd)
		if err != nil {
			return err
		}
		cfg, err := host.LoadConfig(cmd.Context())
		if err != nil {
			return err
		}
		store, err := host.ConfigStore()
		if err != nil {
			return err
		}

		data, err := config.CodecFor(store.Slot().Path()).Encode(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default host configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := bootstrapQuiet(cmd)
		if err != nil {
			return err
		}
		store, err := host.ConfigStore()
		if err != nil {
			return err
		}

		existing, err := store.Load(cmd.Context())
		if err != nil && !configInitForce {
			return err
		}
		if err == nil && existing.ServiceName != "" && !configInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", store.Slot().Path())
		}

		if err := store.Save(cmd.Context(), app.DefaultHostConfig(host.Settings)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", store.Slot().Path())
		return nil
	},
}

func bootstrapQuiet(cmd *cobra.Command) (*app.Host, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return app.Bootstrap(cmd.Context(), settings, nil, di.WithoutPublish())
}
