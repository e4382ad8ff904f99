package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerdesk/cmd/ledgerdesk/cli"
	"github.com/odyssey-erp/ledgerdesk/internal/app"
	"github.com/odyssey-erp/ledgerdesk/internal/erpapi"
	"github.com/odyssey-erp/ledgerdesk/internal/forms"
	"github.com/odyssey-erp/ledgerdesk/internal/mapping"
	"github.com/odyssey-erp/ledgerdesk/internal/masterdata"
	"github.com/odyssey-erp/ledgerdesk/internal/observability"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/cache"
	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "costing":
			os.Exit(runCosting(os.Args[2:]))
		case "jobs":
			os.Exit(runJobs(os.Args[2:]))
		case "serve":
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, costing or jobs)\n", os.Args[1])
			os.Exit(2)
		}
	}
	os.Exit(serve())
}

func serve() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	erp := erpapi.NewClient(cfg.ERPBaseURL, cfg.ERPTimeout, logger)
	erp.SetObserver(metrics)

	jobClient, err := jobs.NewClient(cfg.AsynqRedis())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.AsynqRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	masterdataService := masterdata.NewService(erp, cache.NewVersioned(redisClient, "ledgerdesk:masterdata", cfg.MasterdataTTL), logger)
	mappingService := mapping.NewService(erp)
	formsService := forms.NewService(forms.Deps{
		Vouchers:  erp,
		Purchases: erp,
		Guard:     forms.NewRedisGuard(redisClient, cfg.SubmitLockTTL, logger).WithSealTTL(cfg.DraftTTL),
		Notifier:  jobClient,
		Logger:    logger,
		NewID:     uuid.NewString,
		Now:       time.Now,
	}, forms.NewRedisDraftStore(redisClient, cfg.DraftTTL), metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Resolver:          policy.NewResolver(erp, redisClient, cfg.CapabilityTTL),
		MasterDataHandler: masterdata.NewHandler(logger, masterdataService),
		MappingHandler:    mapping.NewHandler(logger, mappingService),
		FormsHandler:      forms.NewHandler(logger, formsService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("erp", cfg.ERPBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func runCosting(args []string) int {
	if len(args) == 0 || args[0] != "preview" {
		fmt.Fprintln(os.Stderr, "usage: ledgerdesk costing preview [-in file] [-xlsx out.xlsx] [-json]")
		return 2
	}
	fs := flag.NewFlagSet("costing preview", flag.ContinueOnError)
	in := fs.String("in", "-", "purchase JSON file, - for stdin")
	xlsx := fs.String("xlsx", "", "write the cost sheet to this path")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	return cli.CostingPreviewCommand(cli.CostingPreviewOptions{InputPath: *in, XLSXPath: *xlsx, JSONOutput: *asJSON})
}

func runJobs(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ledgerdesk jobs trigger <task> | stats | archived [-n size] | requeue [task]")
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	c, err := cli.NewJobsCLI(cfg.AsynqRedis())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: ledgerdesk jobs trigger <task>")
			return 2
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		_ = enc.Encode(stats)
	case "archived":
		fs := flag.NewFlagSet("jobs archived", flag.ContinueOnError)
		size := fs.Int("n", 10, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		tasks, err := c.ListArchived(ctx, *size)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, t := range tasks {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Type, t.LastErr)
		}
	case "requeue":
		taskType := ""
		if len(args) > 1 {
			taskType = args[1]
		}
		n, err := c.RequeueArchived(ctx, taskType)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("requeued %d task(s)\n", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs command %q\n", args[0])
		return 2
	}
	return 0
}
