package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"provhost/internal/bootstrap"
	"provhost/internal/ui/theme"
)

func newRepoCmd(opts *globalOptions) *cobra.Command {
	repo := &cobra.Command{Use: "repo", Short: "Manage provider repositories"}

	repo.AddCommand(&cobra.Command{
		Use:   "add <url>",
		Short: "Register a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				info, err := app.RepositoryCLI.Add(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s/%s (%s)\n", info.Owner, info.Name, info.URL)
				return nil
			})
		},
	})
	repo.AddCommand(&cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.RepositoryCLI.Remove(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	})
	repo.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List repositories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				repos, err := app.RepositoryCLI.List(ctx)
				if err != nil {
					return err
				}
				if len(repos) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), theme.Muted.Render("no repositories"))
					return nil
				}
				for _, r := range repos {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", theme.Title.Render(r.Owner+"/"+r.Name), r.URL)
				}
				return nil
			})
		},
	})
	return repo
}
