package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"advisor-chat/internal/app"
	"advisor-chat/internal/config"
	"advisor-chat/internal/domain"
	"advisor-chat/internal/infra/advisor"
	"advisor-chat/internal/infra/memory"
	natsinfra "advisor-chat/internal/infra/nats"
	pgloader "advisor-chat/internal/infra/postgres"
	infraredis "advisor-chat/internal/infra/redis"
	"advisor-chat/internal/infra/sqlite"
	"advisor-chat/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// deps holds the collaborators shared by the commands. close releases
// whatever was opened.
type deps struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	transport *advisor.Client
	redis     *redis.Client
	sqlite    *sqlite.Store
	pool      *pgxpool.Pool
	publisher *natsinfra.ProgressPublisher
}

func newDeps(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*deps, error) {
	d := &deps{
		cfg:       cfg,
		logger:    slog.Default(),
		metrics:   m,
		transport: advisor.NewClient(cfg.Advisor.BaseURL, cfg.Advisor.Token, config.TTLDuration(cfg.Advisor.Timeout, 60*time.Second)),
	}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if cfg.Identity.Backend == config.IdentitySQLite {
		store, err := sqlite.Open(cfg.Identity.SQLitePath)
		if err != nil {
			d.close()
			return nil, err
		}
		d.sqlite = store
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
	}

	if cfg.NATS.URL != "" {
		pub, err := natsinfra.Connect(cfg.NATS.URL, cfg.NATS.Subject, d.logger)
		if err != nil {
			d.close()
			return nil, err
		}
		d.publisher = pub
	}
	return d, nil
}

func (d *deps) close() {
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.sqlite != nil {
		_ = d.sqlite.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

// identity returns the persisted-id store for key on the configured backend.
func (d *deps) identity(key string) app.IdentityStore {
	switch d.cfg.Identity.Backend {
	case config.IdentitySQLite:
		return d.sqlite.Identity(key)
	case config.IdentityRedis:
		return infraredis.NewIdentityStore(d.redis, key, config.TTLDuration(d.cfg.Redis.TTL, 30*24*time.Hour))
	default:
		return memory.NewIdentityStore("")
	}
}

func (d *deps) newSession(key string) *app.ConversationSession {
	return app.NewConversationSession(d.transport, d.identity(key), app.SessionConfig{
		Welcome: d.cfg.Session.Welcome,
		Logger:  d.logger.With("client", key),
		Metrics: d.metrics,
	})
}

// quizStore is the backing store behind the quiz cache.
type quizStore interface {
	memory.QuizLoader
	app.QuizWriter
}

func (d *deps) quizService() *app.QuizService {
	var loader quizStore = memory.NewStaticQuizLoader(sampleQuizzes())
	if d.pool != nil {
		loader = pgloader.NewQuizLoader(d.pool)
	}

	ttl := config.TTLDuration(d.cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizRepository
	if d.redis != nil {
		quizzes = infraredis.NewQuizRepository(d.redis, loader, ttl)
	} else {
		quizzes = memory.NewQuizRepository(loader, ttl)
	}

	var reporter app.ProgressReporter = advisor.NewEnrollmentReporter(d.transport)
	if d.publisher != nil {
		reporter = d.publisher
	}
	return app.NewQuizService(quizzes, reporter, d.logger, d.metrics).WithWriter(loader)
}

func (d *deps) clientKey(flag string) string {
	if flag != "" {
		return flag
	}
	return d.cfg.Identity.Key
}

// sampleQuizzes is served when no postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"budgeting-101": {
			ID:    "budgeting-101",
			Title: "Budgeting basics",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "Under the 50/30/20 rule, what share of take-home pay goes to needs?",
					Options: []domain.Option{
						{ID: "a", Text: "20%"},
						{ID: "b", Text: "30%"},
						{ID: "c", Text: "50%"},
					},
					CorrectIndex: 2,
				},
				{
					ID:     "q2",
					Prompt: "How many months of expenses should an emergency fund usually cover?",
					Options: []domain.Option{
						{ID: "a", Text: "3 to 6"},
						{ID: "b", Text: "Less than 1"},
						{ID: "c", Text: "24 or more"},
					},
					CorrectIndex: 0,
				},
				{
					ID:     "q3",
					Prompt: "Which debt is usually worth paying off first?",
					Options: []domain.Option{
						{ID: "a", Text: "The one with the lowest balance"},
						{ID: "b", Text: "The one with the highest interest rate"},
					},
					CorrectIndex: 1,
				},
			},
		},
	}
}
