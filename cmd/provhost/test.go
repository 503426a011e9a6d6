package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"provhost/internal/bootstrap"
	providertestdto "provhost/internal/modules/providertest/dto"
	"provhost/internal/ui/theme"
)

func newTestCmd(opts *globalOptions) *cobra.Command {
	test := &cobra.Command{Use: "test", Short: "Verify loaded providers"}

	var ids []string
	var verbose bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the test batteries; type pause, resume or stop on stdin to control the run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := startProviders(ctx, cmd, app); err != nil {
					return err
				}
				return runTests(ctx, cmd, app, ids, verbose)
			})
		},
	}
	run.Flags().StringSliceVar(&ids, "id", nil, "provider ids to test, in order (default: every loaded provider)")
	run.Flags().BoolVar(&verbose, "verbose", false, "print the full log of every case")
	test.AddCommand(run)
	return test
}

func runTests(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, ids []string, verbose bool) error {
	updates, unsubscribe := app.TestCLI.Watch(256)
	defer unsubscribe()
	if err := app.TestCLI.Start(ctx, ids); err != nil {
		return err
	}
	go readControls(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), app)

	finished := make(chan error, 1)
	go func() {
		finished <- app.TestCLI.Wait(context.Background())
	}()

	printer := &casePrinter{out: cmd.OutOrStdout(), verbose: verbose, printed: map[string]int{}}
	state := ""
	for {
		select {
		case snapshot := <-updates:
			if snapshot.State != state {
				state = snapshot.State
				if state == "paused" {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), theme.Warning.Render("paused; type resume or stop"))
				}
			}
			printer.print(snapshot)
		case err := <-finished:
			final := app.TestCLI.Snapshot(context.Background())
			printer.print(final)
			printer.summary(final)
			return err
		}
	}
}

func readControls(ctx context.Context, in io.Reader, errOut io.Writer, app *bootstrap.App) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		var err error
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "pause":
			err = app.TestCLI.Pause(ctx)
		case "resume":
			err = app.TestCLI.Resume(ctx)
		case "stop":
			err = app.TestCLI.Stop(ctx)
		case "":
			continue
		default:
			err = fmt.Errorf("unknown control %q (pause|resume|stop)", scanner.Text())
		}
		if err != nil {
			_, _ = fmt.Fprintln(errOut, err)
		}
	}
}

// casePrinter prints each finished case once, keyed by run id.
type casePrinter struct {
	out     io.Writer
	verbose bool
	printed map[string]int
}

func (p *casePrinter) print(snapshot providertestdto.Snapshot) {
	for _, run := range snapshot.Results {
		done, seen := p.printed[run.ID]
		if !seen {
			_, _ = fmt.Fprintln(p.out, theme.Title.Render(run.Label))
			p.printed[run.ID] = 0
		}
		for i := done; i < len(run.Cases); i++ {
			c := run.Cases[i]
			if c.Status == "running" {
				break
			}
			_, _ = fmt.Fprintf(p.out, "  %-16s %s %s %s\n", c.Name, theme.Status(c.Status), theme.Muted.Render(c.Elapsed.String()), c.ShortLog)
			if p.verbose && c.FullLog != "" {
				_, _ = fmt.Fprintln(p.out, theme.Muted.Render(indent(c.FullLog, "      ")))
			}
			p.printed[run.ID] = i + 1
		}
	}
}

func (p *casePrinter) summary(snapshot providertestdto.Snapshot) {
	counts := map[string]int{}
	for _, run := range snapshot.Results {
		for _, c := range run.Cases {
			counts[c.Status]++
		}
	}
	_, _ = fmt.Fprintf(p.out, "%d providers: %s %d, %s %d, %s %d\n", len(snapshot.Results),
		theme.Status("success"), counts["success"],
		theme.Status("failure"), counts["failure"],
		theme.Status("not-implemented"), counts["not-implemented"])
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
