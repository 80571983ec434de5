package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"servicecalls/internal/amqp"
	"servicecalls/internal/backend"
	"servicecalls/internal/cli"
	"servicecalls/internal/config"
	"servicecalls/internal/core"
	"servicecalls/internal/dashboard"
	applog "servicecalls/internal/log"
	"servicecalls/internal/source"
	"servicecalls/internal/source/remote"
	"servicecalls/internal/storage"
)

var (
	okLabel   = color.New(color.FgGreen).Sprint("OK")
	failLabel = color.New(color.FgRed).Sprint("FAILED")
	dim       = color.New(color.Faint)
	heading   = color.New(color.Bold)
)

// env is what every subcommand needs: the loaded configuration and a logger
// at the level chosen with --log-level.
type env struct {
	cfg    *config.Config
	loc    *time.Location
	logger *applog.Logger
	dbPath string
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger := cli.SetupLogger(level)

	cfg := config.Load()
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.SQLiteDBPath
	}
	return &env{cfg: cfg, loc: loc, logger: logger, dbPath: dbPath}, nil
}

func (e *env) openStore() (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(e.dbPath, e.loc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.dbPath, err)
	}
	return repo, nil
}

// importFrom fetches with f and replaces the stored dataset.
func (e *env) importFrom(ctx context.Context, from string, f source.Fetcher) error {
	repo, err := e.openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := f.FetchRecords(ctx)
	if err != nil {
		fmt.Printf("Fetch %s: %s\n", from, failLabel)
		return err
	}
	stored, err := repo.Import(ctx, from, records)
	if err != nil {
		fmt.Printf("Import %s: %s\n", from, failLabel)
		return err
	}
	fmt.Printf("Import %s: %s\n", from, okLabel)
	fmt.Printf("  read:   %d\n", len(records))
	fmt.Printf("  stored: %d", stored)
	if dup := len(records) - stored; dup > 0 {
		fmt.Print(dim.Sprintf(" (%d duplicate IDs collapsed)", dup))
	}
	fmt.Printf("\n  into:   %s\n", e.dbPath)
	return nil
}

func fileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file PATH",
		Short: "Import a JSON file of service calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			path := args[0]
			fetch := source.FetcherFunc(func(context.Context) ([]core.ServiceCallRecord, error) {
				f, err := os.Open(path)
				if err != nil {
					return nil, err
				}
				defer f.Close()
				return source.DecodeRecords(f, e.loc)
			})
			return e.importFrom(cmd.Context(), "file:"+path, fetch)
		},
	}
}

func remoteCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "remote URL",
		Short: "Import from a service-call API (GET URL" + remote.DashboardPath + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			client, err := remote.New(args[0], timeout, e.loc, remote.WithLogger(e.logger.WithComponent(applog.ComponentSource)))
			if err != nil {
				return err
			}
			return e.importFrom(cmd.Context(), "remote:"+args[0], client)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

func backendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Import from the backend selected by DATA_BACKEND",
		Long: `Copies the dataset from the configured backend (sheets, postgres, s3,
remote or memory) into SQLite, using the same settings the dashboard would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if e.cfg.DataBackend == config.BackendSQLite {
				return errors.New("DATA_BACKEND is sqlite: nothing to import from")
			}
			bc, err := backend.FromAppConfig(e.cfg)
			if err != nil {
				return err
			}
			bc.RecordsWatch = false

			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.FetchTimeout)
			defer cancel()
			result, err := backend.NewFactory(e.logger.WithComponent(applog.ComponentBackend)).CreateBackend(ctx, bc)
			if err != nil {
				return err
			}
			defer result.Close()
			return e.importFrom(ctx, "backend:"+e.cfg.DataBackend, result.Fetcher)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the SQLite store holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			locale, err := e.cfg.LanguageTag()
			if err != nil {
				return fmt.Errorf("invalid DASHBOARD_LOCALE %q: %w", e.cfg.Locale, err)
			}
			repo, err := e.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			info, ok, err := repo.LastImport(ctx)
			if err != nil {
				return err
			}
			records, err := repo.FetchRecords(ctx)
			if err != nil {
				return err
			}

			heading.Println("Store")
			fmt.Printf("  path:    %s\n", e.dbPath)
			fmt.Printf("  records: %d\n", len(records))
			if ok {
				fmt.Printf("  last import: %s from %s (%d records)\n",
					info.ImportedAt.In(e.loc).Format(time.DateTime), info.Source, info.RecordCount)
			} else {
				fmt.Printf("  last import: %s\n", dim.Sprint("(never)"))
			}
			if len(records) == 0 {
				return nil
			}

			views, _ := dashboard.Compute(records, core.FilterState{}, time.Now().In(e.loc), locale)
			fmt.Println()
			printKPI(views.KPI)
			fmt.Println()
			heading.Println("Status")
			for _, s := range views.StatusSummary {
				fmt.Printf("  %-24s %6d  %3d%%\n", s.Status, s.Count, s.Percent)
			}
			fmt.Println()
			heading.Println("Main categories")
			for _, name := range views.MainCategoryOptions {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}

func printKPI(k dashboard.KPI) {
	heading.Println("KPI")
	fmt.Printf("  total: %d\n", k.Total)
	fmt.Printf("  today: %d %s\n", k.Today, dim.Sprintf("/ %d", k.TodayGaugeMax))
	fmt.Printf("  month: %d %s\n", k.Month, dim.Sprintf("/ %d", k.MonthGaugeMax))
}

func tailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print KPI snapshots published by kpi-worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if e.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(e.cfg.AMQPURL, e.cfg.AMQPExchange, e.cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			focus := color.New(color.FgCyan)
			err = client.ConsumeKPISnapshots(ctx, func(msg *amqp.KPISnapshotMessage) error {
				fmt.Printf("%s %s %s\n",
					dim.Sprint(msg.ComputedAt.In(e.loc).Format(time.DateTime)),
					focus.Sprint(msg.Focus),
					dim.Sprintf("(%d records)", msg.RecordCount))
				fmt.Printf("  total %d  today %d/%d  month %d/%d\n",
					msg.KPI.Total, msg.KPI.Today, msg.KPI.TodayGaugeMax, msg.KPI.Month, msg.KPI.MonthGaugeMax)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
