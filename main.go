package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Chative-lead-agent/server/internal/agent/calendar"
	"github.com/Chative-lead-agent/server/internal/agent/graph"
	"github.com/Chative-lead-agent/server/internal/agent/knowledge"
	"github.com/Chative-lead-agent/server/internal/agent/lock"
	"github.com/Chative-lead-agent/server/internal/agent/model"
	"github.com/Chative-lead-agent/server/internal/agent/repo"
	"github.com/Chative-lead-agent/server/internal/agent/scheduling"
	"github.com/Chative-lead-agent/server/internal/core"
	"github.com/Chative-lead-agent/server/internal/dispatch"
	"github.com/Chative-lead-agent/server/internal/transport/broker"
	"github.com/Chative-lead-agent/server/internal/transport/rest"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
	pkgpostgres "github.com/Chative-lead-agent/server/pkg/postgres"
	pkgredis "github.com/Chative-lead-agent/server/pkg/redis"
	"github.com/Chative-lead-agent/server/pkg/resilience"
)

// AppConfig is sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config
	Store    model.StoreConfig
	Lock     model.LockConfig
	Dispatch model.DispatchConfig
	HTTP     rest.Config
	AMQP     broker.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Extraction model.ExtractionModelConfig
	Response   model.ResponseModelConfig
	Prompt     model.ResponsePromptConfig
	Knowledge  model.KnowledgeConfig
	Calendar   model.CalendarConfig
	SMTP       model.SMTPConfig
	Scheduling model.SchedulingConfig

	// Collaborator guards
	CompletionGuard resilience.Config `envconfig:"COMPLETION"`
	SearchGuard     resilience.Config `envconfig:"SEARCH"`
	BookingGuard    resilience.Config `envconfig:"BOOKING"`
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("lead agent stopped")
	}
	logx.Info().Msg("lead agent shut down")
}

func run(ctx context.Context, cfg AppConfig) error {
	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	logx.Info().Msg("connected to redis")

	store, pool, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	locker, err := lock.New(cfg.Lock, rdb)
	if err != nil {
		return err
	}

	var search model.KnowledgeSearch
	if s := knowledge.NewFromConfig(cfg.Knowledge); s != nil {
		search = resilience.GuardSearch(s, resilience.NewGuard("knowledge", cfg.SearchGuard))
	} else {
		logx.Info().Msg("knowledge search disabled")
	}

	booking, err := calendar.New(cfg.Calendar, cfg.SMTP)
	if err != nil {
		return err
	}
	if booking != nil {
		booking = resilience.GuardBooking(booking, resilience.NewGuard("calendar", cfg.BookingGuard))
	}

	policy, err := scheduling.ParsePolicy(cfg.Scheduling.Policy)
	if err != nil {
		return err
	}
	trigger := scheduling.NewTrigger(booking, store, cfg.Calendar, policy, time.Now)

	var queue *dispatch.Client
	var meetings model.MeetingPublisher = scheduling.DirectPublisher{Trigger: trigger}
	if !cfg.Dispatch.Inline {
		queue, err = dispatch.NewClient(cfg.Redis.URL, cfg.Dispatch)
		if err != nil {
			return err
		}
		defer queue.Close()
		meetings = queue
	}

	var conn *amqp.Connection
	var outbound model.OutboundPublisher
	if cfg.AMQP.Enabled() {
		conn, err = amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer conn.Close()
		pub, err := broker.NewPublisher(conn, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		outbound = pub
	}

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		ExtractionModel: cfg.Extraction,
		ResponseModel:   cfg.Response,
		ResponsePrompt:  cfg.Prompt,
		Knowledge:       cfg.Knowledge,
		Completion:      cfg.CompletionGuard,
		Deps: graph.Deps{
			Store:       store,
			Search:      search,
			Meetings:    meetings,
			Outbound:    outbound,
			Locker:      locker,
			Clock:       time.Now,
			TurnTimeout: cfg.Dispatch.TurnTimeout,
		},
	})
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	var dispatcher dispatch.Dispatcher = dispatch.Inline{Runner: runner, Delay: cfg.Dispatch.TurnDelay}
	if queue != nil {
		dispatcher = queue
	}

	g, ctx := errgroup.WithContext(ctx)

	if queue != nil {
		worker, err := dispatch.NewWorker(cfg.Redis.URL, cfg.Dispatch, runner, trigger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			worker.Run(ctx)
			return nil
		})
	}

	if conn != nil {
		intake := broker.NewIntake(dispatcher)
		g.Go(func() error { return broker.Consume(ctx, conn, cfg.AMQP, intake) })
	}

	handler := rest.NewHandler(dispatcher, store, runner)
	router := rest.NewRouter(cfg.Environment, cfg.HTTP, handler, health(rdb, pool))
	g.Go(func() error { return rest.Serve(ctx, cfg.HTTP, router) })

	return g.Wait()
}

func openStore(ctx context.Context, cfg AppConfig, rdb *redis.Client) (model.Store, *pgxpool.Pool, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "", "redis":
		return repo.NewRedisStore(rdb, cfg.Store.TTL), nil, nil
	case "postgres":
		pool, err := cfg.Postgres.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pkgpostgres.Migrate(ctx, pool, repo.Migrations, repo.MigrationsDir); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logx.Info().Msg("postgres migrations applied")
		return repo.NewPostgresStore(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func health(rdb *redis.Client, pool *pgxpool.Pool) rest.HealthFunc {
	return func(ctx context.Context) (map[string]string, error) {
		details := map[string]string{"redis": "ok"}
		if err := rdb.Ping(ctx).Err(); err != nil {
			details["redis"] = err.Error()
			return details, fmt.Errorf("redis unavailable")
		}
		if pool != nil {
			details["postgres"] = "ok"
			if err := pool.Ping(ctx); err != nil {
				details["postgres"] = err.Error()
				return details, fmt.Errorf("postgres unavailable")
			}
		}
		return details, nil
	}
}
