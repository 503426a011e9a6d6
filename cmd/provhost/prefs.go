package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"provhost/internal/bootstrap"
	providerdto "provhost/internal/modules/provider/dto"
	providerservice "provhost/internal/modules/provider/service"
)

func newPrefsCmd(opts *globalOptions) *cobra.Command {
	prefs := &cobra.Command{Use: "prefs", Short: "Show or change provider preferences"}

	prefs.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				current, err := app.ProviderCLI.Preferences(ctx)
				if err != nil {
					return err
				}
				printPreferences(cmd.OutOrStdout(), current)
				return nil
			})
		},
	})
	prefs.AddCommand(&cobra.Command{
		Use:   "set <key> <true|false>",
		Short: fmt.Sprintf("Set a preference (%s, %s)", providerservice.PrefDebugIDSuffix, providerservice.PrefPurgeStaleResources),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("value must be true or false: %w", err)
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				updated, err := app.ProviderCLI.SetPreference(ctx, args[0], value)
				if err != nil {
					return err
				}
				printPreferences(cmd.OutOrStdout(), updated)
				return nil
			})
		},
	})
	return prefs
}

func printPreferences(w io.Writer, prefs providerdto.Preferences) {
	_, _ = fmt.Fprintf(w, "%s=%t\n", providerservice.PrefDebugIDSuffix, prefs.DebugIDSuffix)
	_, _ = fmt.Fprintf(w, "%s=%t\n", providerservice.PrefPurgeStaleResources, prefs.PurgeStaleResources)
}
