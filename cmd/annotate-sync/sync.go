package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-annotation-api/internal/config"
	"github.com/noah-isme/gema-annotation-api/internal/database"
	"github.com/noah-isme/gema-annotation-api/internal/dto"
	"github.com/noah-isme/gema-annotation-api/internal/models"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/service"
	"github.com/noah-isme/gema-annotation-api/internal/sheet"
)

// syncEnv holds the flags of the sync command.
type syncEnv struct {
	v           *viper.Viper
	goldenSheet string
	evalSheet   string
	syncActive  bool
	dryRun      bool
	verbose     bool
}

func getSyncCmd() *cobra.Command {
	env := &syncEnv{v: config.New()}

	ret := &cobra.Command{
		Use:   "annotate-sync",
		Short: "Reconcile annotators and assignments with the evaluation sheet",
		Long: `
Reads the evaluation sheet, matches every row to a catalog question and rebuilds
annotators, assignments and seeded feedback in one transaction. With
--golden-sheet the catalog is upserted from the golden sheet first; add
--sync-active to deactivate questions the golden sheet no longer lists.`,
		Args: cobra.NoArgs,
		RunE: env.run,
	}

	flags := ret.Flags()
	flags.String("db", "", "Database URL or sqlite path (default from ANNOTATE_DATABASE_URL)")
	flags.String("driver", "", "Database driver, sqlite or postgres (default from ANNOTATE_DATABASE_DRIVER)")
	flags.StringVar(&env.goldenSheet, "golden-sheet", "", "Golden catalog CSV to import before reconciling")
	flags.StringVar(&env.evalSheet, "eval-sheet", "", "Evaluation sheet CSV")
	flags.BoolVar(&env.syncActive, "sync-active", false, "Deactivate questions missing from the golden sheet")
	flags.BoolVar(&env.dryRun, "dry-run", false, "Report matches without writing")
	flags.BoolVarP(&env.verbose, "verbose", "v", false, "Log progress to stderr")
	_ = ret.MarkFlagRequired("eval-sheet")

	_ = env.v.BindPFlag("database.url", flags.Lookup("db"))
	_ = env.v.BindPFlag("database.driver", flags.Lookup("driver"))

	return ret
}

func (e *syncEnv) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	level := zerolog.WarnLevel
	if e.verbose {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(cmd.ErrOrStderr()).Level(level).With().Timestamp().Logger()

	cfg, err := config.FromViper(e.v)
	if err != nil {
		return err
	}

	if e.syncActive && e.goldenSheet == "" {
		return fmt.Errorf("--sync-active requires --golden-sheet")
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := repository.NewStore(db)
	actor := service.SystemActor("annotate-sync")
	activity := service.NewActivityService(store.Activity(), logger)
	publisher := service.NewEventPublisher(redisClient, nil, cfg.EventSubject)

	if e.goldenSheet != "" {
		if e.dryRun {
			logger.Warn().Msg("dry run skips the golden sheet import")
		} else {
			catalog := service.NewCatalogService(store, activity, publisher, logger)
			touched, err := importGolden(ctx, catalog, actor, e.goldenSheet, e.syncActive)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "golden_unique_questions_upserted=%d\n", touched)
		}
	}

	eval, err := readEvalSheet(e.evalSheet)
	if err != nil {
		return err
	}

	reconciler := service.NewReconciliationService(store, service.NewLocker(redisClient), activity, publisher, service.ReconciliationConfig{
		TestCategories: cfg.TestCategories,
		LockTTL:        cfg.ReconcileLockTTL,
	}, logger)

	started := time.Now()
	report, err := reconciler.Reconcile(ctx, actor, eval, service.ReconcileOptions{DryRun: e.dryRun})
	if err != nil {
		return err
	}
	logger.Info().Dur("took", time.Since(started)).Bool("dry_run", e.dryRun).Msg("reconciliation finished")

	writeReport(out, report)
	return nil
}

func importGolden(ctx context.Context, catalog service.CatalogService, actor service.Actor, path string, syncActive bool) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open golden sheet: %w", err)
	}
	defer file.Close()

	rows, err := sheet.ReadCatalog(file)
	if err != nil {
		return 0, err
	}

	mode := models.ImportModeUpsert
	if syncActive {
		mode = models.ImportModeSync
	}
	report, err := catalog.Import(ctx, actor, rows, service.CatalogImportOptions{Mode: mode})
	if err != nil {
		return 0, err
	}
	return report.Touched, nil
}

func readEvalSheet(path string) (sheet.EvalSheet, error) {
	file, err := os.Open(path)
	if err != nil {
		return sheet.EvalSheet{}, fmt.Errorf("open eval sheet: %w", err)
	}
	defer file.Close()
	return sheet.ReadEvalSheet(file)
}

func writeReport(w io.Writer, report dto.ReconcileReport) {
	fmt.Fprintf(w, "eval_sheet_rows=%d\n", report.SheetRows)
	fmt.Fprintf(w, "unique_sheet_emails=%d\n", report.UniqueEmails)
	fmt.Fprintf(w, "mapped_rows=%d\n", report.Mapped)
	fmt.Fprintf(w, "unmapped_rows=%d\n", report.Unmapped)
	fmt.Fprintf(w, "ambiguous_rows=%d\n", report.Ambiguous)
	writeSamples(w, "first_unmapped", report.UnmappedSamples)
	writeSamples(w, "first_ambiguous", report.AmbiguousSamples)

	if !report.Applied {
		fmt.Fprintln(w, "applied=0 (dry-run)")
		return
	}
	fmt.Fprintf(w, "applied=1 users=%d assignments=%d active_questions=%d\n",
		report.Annotators, report.Assignments, report.ActiveQuestions)
}

func writeSamples(w io.Writer, label string, samples []string) {
	if len(samples) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, sample := range samples {
		fmt.Fprintf(w, " - %s\n", sample)
	}
}
