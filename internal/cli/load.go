package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

type loadOptions struct {
	claims  string
	details string
	mode    string
	policy  string
	format  string
}

func (a *app) loadCommand() *cobra.Command {
	var opts loadOptions
	cmd := &cobra.Command{
		Use:   "load --claims FILE --details FILE",
		Short: "Import claims and claim details from JSON or CSV files",
		Long: `Import a claims file and a details file in one transaction.

In overwrite mode (the default) every existing claim, detail and note is
deleted first. In append mode claims are created or updated by id and
flags are kept. The import report is printed when the run finishes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.load(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.claims, "claims", "", "claims file (required)")
	f.StringVar(&opts.details, "details", "", "claim details file (required)")
	f.StringVar(&opts.mode, "mode", string(core.ModeOverwrite), "overwrite or append")
	f.StringVar(&opts.policy, "policy", "", "atomic or best_effort (default from IMPORT_POLICY)")
	f.StringVar(&opts.format, "format", "", "json or csv (default: from the file extension, then the content)")
	_ = cmd.MarkFlagRequired("claims")
	_ = cmd.MarkFlagRequired("details")
	return cmd
}

func (a *app) load(ctx context.Context, cmd *cobra.Command, opts loadOptions) error {
	mode, err := core.ParseImportMode(opts.mode)
	if err != nil {
		return err
	}
	var policy core.ImportPolicy
	if opts.policy != "" {
		if policy, err = core.ParseImportPolicy(opts.policy); err != nil {
			return err
		}
	}
	format, err := core.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	claims, err := os.Open(opts.claims)
	if err != nil {
		return fmt.Errorf("open claims file: %w", err)
	}
	defer claims.Close()
	details, err := os.Open(opts.details)
	if err != nil {
		return fmt.Errorf("open details file: %w", err)
	}
	defer details.Close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	service := core.NewService(st, core.OptionsFromConfig(a.cfg))
	report, err := service.Import(ctx, core.ImportRequest{
		Claims:  core.Source{Name: opts.claims, Reader: claims, Format: format},
		Details: core.Source{Name: opts.details, Reader: details, Format: format},
		Mode:    mode,
		Policy:  policy,
	})
	if report != nil {
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
	}
	return err
}
