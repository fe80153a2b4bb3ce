package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"example.com/socialapi/cmd/server"
	"example.com/socialapi/cmd/worker"
	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/accounts"
	"example.com/socialapi/internal/activity"
	"example.com/socialapi/internal/auth"
	appkafka "example.com/socialapi/internal/broker"
	config "example.com/socialapi/internal/init"
	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
	log.Println("Shutdown completed")
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "socialapi",
		Short:         "Social API server, notification worker and admin tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Initialize application configuration
			cfg = config.Init()
			if err := logger.SetLevel(cfg.LogLevel); err != nil {
				return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
			}
			return nil
		},
		// Without a subcommand the MODE setting decides what to run.
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch cfg.Mode {
			case "server":
				return runServer(cmd.Context(), cfg)
			case "worker":
				return runWorker(cmd.Context(), cfg)
			default:
				return fmt.Errorf("unknown mode: %s", cfg.Mode)
			}
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "server",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServer(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Consume activity events and store notifications",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWorker(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cfg)
			},
		},
		&cobra.Command{
			Use:   "setup-groups",
			Short: "Print the permission groups and seed accounts from GROUPS_FILE",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSetupGroups(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
	)

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cobra.OnFinalize(stop)
	root.SetContext(ctx)
	return root
}

func runServer(ctx context.Context, cfg *config.Config) error {
	policy, deletePolicy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	tokens, err := newTokens(ctx, cfg)
	if err != nil {
		return err
	}

	rec := metrics.NewCollector(prometheus.DefaultRegisterer)
	pub, err := newPublisher(cfg, stores, rec)
	if err != nil {
		return err
	}
	defer pub.Close()

	s := server.New(server.Deps{
		Stores:    stores,
		Publisher: pub,
		Tokens:    tokens,
		Policy:    policy,
		Metrics:   rec,
		Gatherer:  prometheus.DefaultGatherer,
	}, server.Options{
		DefaultGroup:   cfg.DefaultGroup,
		DeletePolicy:   deletePolicy,
		FeedPageSize:   cfg.FeedPageSize,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		HSTSSeconds:    hstsSeconds(cfg),
	})
	return s.Run(ctx, cfg.ServerAddr, cfg.TLSCertFile, cfg.TLSKeyFile)
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	if !cfg.KafkaEnabled {
		return fmt.Errorf("worker needs KAFKA_ENABLED=true; without Kafka the server stores notifications itself")
	}

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	// Start the worker that reads activity events from Kafka
	w := worker.New(
		activity.NewHandler(stores.Notifications),
		appkafka.NewKafkaReader(kafkaConfig(cfg)),
		metrics.NewCollector(prometheus.DefaultRegisterer),
		0, 0,
	)
	defer w.Close()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := metrics.ListenAndServe(gctx, cfg.MetricsAddr, prometheus.DefaultGatherer); err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		w.Run(gctx)
		return nil
	})
	return g.Wait()
}

func runMigrate(cfg *config.Config) error {
	sql, err := store.OpenSQL(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer sql.Close()

	if cfg.GraphBackend == "cassandra" {
		// Creates the keyspace if needed and applies migrations/cassandra.
		g, err := store.NewCassandraGraph(cfg)
		if err != nil {
			return err
		}
		g.Close()
	}
	log.Println("Migrations applied")
	return nil
}

func runSetupGroups(ctx context.Context, cfg *config.Config, out io.Writer) error {
	policy, deletePolicy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tRESOURCE\tCAPABILITIES")
	for _, g := range policy.Table() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Group, g.Resource, joinCapabilities(g.Capabilities))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if cfg.GroupsFile == "" {
		return nil
	}
	f, err := access.LoadFile(cfg.GroupsFile)
	if err != nil {
		return err
	}

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	svc := accounts.NewService(stores, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, nil), policy, accounts.Options{
		DefaultGroup: cfg.DefaultGroup,
		DeletePolicy: deletePolicy,
	})
	res, err := svc.Seed(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %d accounts, added %d memberships\n", res.Created, res.Memberships)
	return nil
}
