package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"provhost/internal/bootstrap"
	providerdto "provhost/internal/modules/provider/dto"
	"provhost/internal/ui/theme"
)

func newProviderCmd(opts *globalOptions) *cobra.Command {
	provider := &cobra.Command{Use: "provider", Short: "Manage installed providers"}

	provider.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Load debug and installed providers and report each outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				results, err := app.ProviderCLI.Init(ctx)
				for _, result := range results {
					printLoadResult(cmd.OutOrStdout(), result)
				}
				return err
			})
		},
	})

	var loadFirst bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List installed providers in display order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if loadFirst {
					if err := startProviders(ctx, cmd, app); err != nil {
						return err
					}
				}
				infos, err := app.ProviderCLI.List(ctx)
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), theme.Muted.Render("no providers installed"))
					return nil
				}
				for _, info := range infos {
					state := "disabled"
					if info.Enabled {
						state = "enabled"
					}
					if info.Active {
						state = "loaded"
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\t%s\n",
						info.Position, theme.Title.Render(info.ID), info.Name, info.Version,
						theme.Status(state), theme.Flag(info.Debug, "debug"))
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&loadFirst, "load", false, "load providers before listing so versions and load state are shown")
	provider.AddCommand(list)

	var repoURL, providerID string
	install := &cobra.Command{
		Use:   "install --repo <url> --id <provider-id>",
		Short: "Download and load a provider from a repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(repoURL) == "" || strings.TrimSpace(providerID) == "" {
				return fmt.Errorf("--repo and --id are required")
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				result, err := app.ProviderCLI.Install(ctx, repoURL, providerID)
				if err != nil {
					return err
				}
				printLoadResult(cmd.OutOrStdout(), result)
				if !result.OK {
					return fmt.Errorf("install %s failed", providerID)
				}
				return nil
			})
		},
	}
	install.Flags().StringVar(&repoURL, "repo", "", "repository url")
	install.Flags().StringVar(&providerID, "id", "", "provider id from the repository listing")
	provider.AddCommand(install)

	provider.AddCommand(&cobra.Command{
		Use:   "uninstall <id>",
		Short: "Unload a provider and delete its record and artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := startProviders(ctx, cmd, app); err != nil {
					return err
				}
				result, err := app.ProviderCLI.Uninstall(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s (was loaded: %t)\n", result.ID, result.Unloaded)
				return nil
			})
		},
	})
	provider.AddCommand(&cobra.Command{
		Use:   "enable <id>",
		Short: "Enable a provider and register its capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := startProviders(ctx, cmd, app); err != nil {
					return err
				}
				if err := app.ProviderCLI.Enable(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enabled %s\n", args[0])
				return nil
			})
		},
	})
	provider.AddCommand(&cobra.Command{
		Use:   "disable <id>",
		Short: "Disable a provider without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ProviderCLI.Disable(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", args[0])
				return nil
			})
		},
	})
	provider.AddCommand(&cobra.Command{
		Use:   "move <id> <position>",
		Short: "Change a provider's display position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position must be a number: %w", err)
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ProviderCLI.Move(ctx, args[0], position); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %d\n", args[0], position)
				return nil
			})
		},
	})
	provider.AddCommand(&cobra.Command{
		Use:   "updates",
		Short: "List providers with newer builds in their repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := startProviders(ctx, cmd, app); err != nil {
					return err
				}
				updates, err := app.ProviderCLI.Updates(ctx)
				if err != nil {
					return err
				}
				if len(updates) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), theme.Muted.Render("all providers are up to date"))
					return nil
				}
				for _, update := range updates {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s -> %s\n", theme.Title.Render(update.ID), update.Current, theme.Hot.Render(update.Available))
				}
				return nil
			})
		},
	})
	provider.AddCommand(&cobra.Command{
		Use:   "update <id>",
		Short: "Replace a loaded provider with its newest build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := startProviders(ctx, cmd, app); err != nil {
					return err
				}
				result, err := app.ProviderCLI.Update(ctx, args[0])
				if err != nil {
					return err
				}
				printLoadResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	})

	var pack providerdto.PackInput
	packCmd := &cobra.Command{
		Use:   "pack --id <id> --name <name> --version <v> --binary <path>",
		Short: "Build a .prov artifact from a provider binary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.ProviderCLI.Pack(ctx, pack)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "packed %s\n%s\n", out.Path, out.Manifest)
				return nil
			})
		},
	}
	packCmd.Flags().StringVar(&pack.ID, "id", "", "provider id")
	packCmd.Flags().StringVar(&pack.Name, "name", "", "provider display name")
	packCmd.Flags().StringVar(&pack.Version, "version", "", "provider version")
	packCmd.Flags().StringVar(&pack.BinaryPath, "binary", "", "provider executable")
	packCmd.Flags().StringVar(&pack.ResourcesDir, "resources", "", "optional resources directory")
	packCmd.Flags().StringVar(&pack.UpdateURL, "update-url", "", "optional update listing url")
	packCmd.Flags().StringVar(&pack.Output, "out", "", "artifact path (defaults to <name>.prov)")
	provider.AddCommand(packCmd)

	return provider
}

// startProviders loads every installed provider. Individual failures are
// reported but do not abort the command.
func startProviders(ctx context.Context, cmd *cobra.Command, app *bootstrap.App) error {
	results, err := app.ProviderCLI.Init(ctx)
	if err != nil {
		return err
	}
	for _, result := range results {
		if !result.OK {
			printLoadResult(cmd.ErrOrStderr(), result)
		}
	}
	return nil
}

func printLoadResult(w io.Writer, result providerdto.LoadResult) {
	if result.OK {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", theme.Status("ok"), theme.Title.Render(result.ID), result.Version, result.FilePath)
		return
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", theme.Status("failed"), theme.Title.Render(result.ID), result.Error)
}
