package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/LineReport/internal/app"
	"github.com/dharsanguruparan/LineReport/internal/config"
	"github.com/dharsanguruparan/LineReport/internal/history"
	"github.com/dharsanguruparan/LineReport/internal/logger"
	"github.com/dharsanguruparan/LineReport/internal/model"
)

var logMode string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "linereport: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linereport",
		Short: "Production line incident reporting",
		Long: `linereport serves the incident form and gives operators command line access to
the report history: listing, exporting and checking the configured backends.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&logMode, "log", "", "Log mode (dev or prod); defaults to LINEREPORT_ENV")
	cmd.AddCommand(
		newServeCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newMachinesCmd(),
		newCheckCmd(),
	)
	return cmd
}

// setup loads configuration and wires the backends for one command.
func setup(ctx context.Context) (*config.Config, *logger.Logger, *app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if logMode != "" {
		cfg.LogMode = logMode
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, a, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the incident form web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer a.Close()
			if addr != "" {
				cfg.Address = addr
			}
			srv, err := a.Server(cfg)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides LINEREPORT_ADDRESS")
	return cmd
}

func addFilterFlags(cmd *cobra.Command, f *history.Filter) {
	cmd.Flags().StringVar(&f.Operator, "operator", "", "Keep reports whose operator contains this text (case-insensitive)")
	cmd.Flags().StringVar(&f.Machine, "machine", "", "Keep reports for this machine only")
}

func newHistoryCmd() *cobra.Command {
	var filter history.Filter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, log, a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer a.Close()
			view, err := a.History.Load(ctx, filter)
			if err != nil {
				return err
			}
			if view.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay reportes registrados todavía.")
				return nil
			}
			return printRows(cmd.OutOrStdout(), view.Rows)
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func printRows(w io.Writer, rows []model.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, col := range model.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp, r.Operator, r.Machine, r.Product, r.Order, r.Description, r.PhotoURL)
	}
	return tw.Flush()
}

func newExportCmd() *cobra.Command {
	var (
		filter history.Filter
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered history to an XLSX or CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, log, a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer a.Close()
			view, err := a.History.Load(ctx, filter)
			if err != nil {
				return err
			}
			if view.Empty() {
				return fmt.Errorf("no reports to export")
			}
			var data []byte
			switch format {
			case "xlsx":
				data, err = history.ExportXLSX(view.Rows)
				if out == "" {
					out = history.XLSXFileName
				}
			case "csv":
				data, err = history.ExportCSV(view.Rows)
				if out == "" {
					out = history.CSVFileName
				}
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			log.Info("history exported", "file", out, "rows", len(view.Rows))
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	cmd.Flags().StringVar(&format, "format", "xlsx", "Export format: xlsx or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file; defaults to the download file name")
	return cmd
}

func newMachinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "machines",
		Short: "List the selectable machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for _, m := range cfg.Machines {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and Google credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer a.Close()
			if a.Credentials != nil {
				creds, err := a.Credentials.Credentials(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "credentials: ok (project %s)\n", creds.ProjectID)
			}
			if _, err := a.History.Load(ctx, history.Filter{}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "records (%s): ok\nphotos (%s): configured\n", cfg.RecordBackend, cfg.PhotoBackend)
			return nil
		},
	}
}
