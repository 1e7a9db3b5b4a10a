package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/commentgoat/internal/settings"
)

// settingsCmd creates the "settings" subcommand tree.
func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change feature flags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every flag and its value",
		Args:  cobra.NoArgs,
		RunE: withFlags(func(ctx context.Context, flags *settings.Flags, args []string) error {
			all, err := flags.All(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				marker := ""
				if !settings.IsKnown(k) {
					marker = "  (unknown)"
				}
				fmt.Printf("%-36s %v%s\n", k, all[k], marker)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print one flag",
		Args:  cobra.ExactArgs(1),
		RunE: withFlags(func(ctx context.Context, flags *settings.Flags, args []string) error {
			v, err := flags.ReadConfig(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY true|false",
		Short: "Change one flag",
		Args:  cobra.ExactArgs(2),
		RunE: withFlags(func(ctx context.Context, flags *settings.Flags, args []string) error {
			v, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("value must be true or false: %w", err)
			}
			if !settings.IsKnown(args[0]) {
				fmt.Printf("⚠️  %s is not a known flag; storing it anyway\n", args[0])
			}
			if _, err := flags.StoreConfig(ctx, args[0], v); err != nil {
				return err
			}
			fmt.Printf("%s = %v\n", args[0], v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Write defaults for flags that are not set yet",
		Args:  cobra.NoArgs,
		RunE: withFlags(func(ctx context.Context, flags *settings.Flags, args []string) error {
			return flags.InstallDefaults(ctx)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Overwrite every flag with its default",
		Args:  cobra.NoArgs,
		RunE: withFlags(func(ctx context.Context, flags *settings.Flags, args []string) error {
			return flags.Reset(ctx)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every stored flag",
		Args:  cobra.NoArgs,
		RunE: withFlags(func(ctx context.Context, flags *settings.Flags, args []string) error {
			return flags.ClearConfigs(ctx)
		}),
	})

	return cmd
}

// withFlags opens the configured settings store around fn.
func withFlags(fn func(ctx context.Context, flags *settings.Flags, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, _ := setupLogger(&cfg.Logging)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := settings.Open(ctx, &cfg.Settings, logger)
		if err != nil {
			return fmt.Errorf("open settings: %w", err)
		}
		defer store.Close()

		return fn(ctx, settings.NewFlags(store, logger), args)
	}
}
