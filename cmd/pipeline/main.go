package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/stockpipe/stock-etl/internal/api"
	"github.com/stockpipe/stock-etl/internal/config"
	"github.com/stockpipe/stock-etl/internal/database"
	"github.com/stockpipe/stock-etl/internal/kafka"
	"github.com/stockpipe/stock-etl/internal/loader"
	"github.com/stockpipe/stock-etl/internal/models"
	"github.com/stockpipe/stock-etl/internal/pipeline"
	"github.com/stockpipe/stock-etl/internal/provider"
)

const dateLayout = "2006-01-02"

func main() {
	// A .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := &cli.App{
		Name:  "stock-etl",
		Usage: "daily equity bar and indicator ETL pipeline",
		Commands: []*cli.Command{
			runCommand(log),
			migrateCommand(log),
			serveCommand(log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand(log *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "execute one pipeline run over the symbol universe",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbols", Usage: "comma-separated universe override"},
			&cli.StringFlag{Name: "since", Usage: "start date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "until", Usage: "end date (YYYY-MM-DD), default today"},
			&cli.IntFlag{Name: "concurrency", Usage: "parallel symbol batches"},
			&cli.Float64Flag{Name: "quality-threshold", Usage: "blocking check failure-ratio threshold", Value: -1},
			&cli.BoolFlag{Name: "recompute-returns", Usage: "cascade daily_return recompute on reloads"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()

			until := time.Now().UTC().Truncate(24 * time.Hour)
			if v := c.String("until"); v != "" {
				var err error
				if until, err = time.Parse(dateLayout, v); err != nil {
					return cli.Exit(fmt.Sprintf("invalid --until date: %v", err), 2)
				}
			}
			since := until.AddDate(-1, 0, 0)
			if v := c.String("since"); v != "" {
				var err error
				if since, err = time.Parse(dateLayout, v); err != nil {
					return cli.Exit(fmt.Sprintf("invalid --since date: %v", err), 2)
				}
			}

			if v := c.Int("concurrency"); v > 0 {
				cfg.Pipeline.Concurrency = v
			}
			if v := c.Float64("quality-threshold"); v >= 0 {
				cfg.Pipeline.QualityThreshold = v
			}
			if c.Bool("recompute-returns") {
				cfg.Pipeline.RecomputeReturns = true
			}

			db, err := database.New(cfg.Database.ConnectionString())
			if err != nil {
				return cli.Exit(fmt.Sprintf("database connection failed: %v", err), 2)
			}
			defer db.Close()

			symbols := cfg.Pipeline.Symbols
			if v := c.String("symbols"); v != "" {
				symbols = splitSymbols(v)
			}
			if len(symbols) == 0 {
				if symbols, err = db.GetActiveSymbols(); err != nil {
					return cli.Exit(fmt.Sprintf("failed to load symbol universe: %v", err), 2)
				}
			}
			if len(symbols) == 0 {
				return cli.Exit("symbol universe is empty", 2)
			}

			cache := provider.NewCache(redisAddr(cfg), cfg.Provider.CacheTTL, log)
			defer cache.Close()

			fetcher := provider.NewClient(provider.Options{
				BaseURL:           cfg.Provider.BaseURL,
				APIKey:            cfg.Provider.APIKey,
				Timeout:           cfg.Provider.Timeout,
				MaxRetries:        cfg.Provider.MaxRetries,
				RequestsPerMinute: cfg.Provider.RequestsPerMinute,
			}, cache, log)
			defer fetcher.Close()

			var events pipeline.EventPublisher
			if cfg.Kafka.Enabled {
				producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
				defer producer.Close()
				events = producer
			}

			orch := pipeline.New(
				fetcher,
				loader.New(db, cfg.Pipeline.RecomputeReturns, log),
				db,
				events,
				pipeline.Options{
					Concurrency:      cfg.Pipeline.Concurrency,
					QualityThreshold: cfg.Pipeline.QualityThreshold,
				},
				log,
			)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run, err := orch.Run(ctx, symbols, since, until)
			if err != nil {
				return cli.Exit(fmt.Sprintf("run bookkeeping failed: %v", err), 2)
			}

			switch run.Status {
			case models.RunStatusSuccess:
				return nil
			case models.RunStatusWarning:
				return cli.Exit(fmt.Sprintf("run %s finished with warnings", run.RunID), 1)
			default:
				return cli.Exit(fmt.Sprintf("run %s failed: %s", run.RunID, run.ErrorDetail), 2)
			}
		},
	}
}

func migrateCommand(log *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Value: "db/migrations", Usage: "migrations directory"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			db, err := database.New(cfg.Database.ConnectionString())
			if err != nil {
				return cli.Exit(fmt.Sprintf("database connection failed: %v", err), 2)
			}
			defer db.Close()

			if err := db.Migrate(c.String("path")); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func serveCommand(log *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the read-only dashboard API",
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			db, err := database.New(cfg.Database.ConnectionString())
			if err != nil {
				return cli.Exit(fmt.Sprintf("database connection failed: %v", err), 2)
			}
			defer db.Close()

			router := api.SetupRoutes(api.NewHandler(db))
			addr := cfg.Server.Host + ":" + cfg.Server.Port
			log.WithField("addr", addr).Info("serving dashboard API")
			if err := http.ListenAndServe(addr, router); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return nil
		},
	}
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := strings.ToUpper(strings.TrimSpace(p)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func redisAddr(cfg *config.Config) string {
	if !cfg.Redis.Enabled {
		return ""
	}
	return cfg.Redis.Addr
}
