package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"pdf-chat/internal/cache"
	"pdf-chat/internal/chat"
	"pdf-chat/internal/config"
	"pdf-chat/internal/events"
	"pdf-chat/internal/i18n"
	"pdf-chat/internal/llm"
	"pdf-chat/internal/logger"
)

// Deps bundles common runtime dependencies for the server and the CLI.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	LLM      llm.Client
	Cache    cache.Cache
	Broker   *events.Broker
	Events   events.Publisher
	Sessions *chat.Manager
	Lang     i18n.Pack

	closers []func() error
}

// Close releases connections opened by Build, in reverse order.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build loads env, config, and shared components. A missing .env file is
// not an error.
func Build(ctx context.Context) (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	return BuildFrom(ctx, cfg, logger.New(cfg.LogLevel))
}

// BuildFrom wires components for an already loaded configuration.
func BuildFrom(ctx context.Context, cfg config.Config, log *slog.Logger) (Deps, error) {
	deps := Deps{Config: cfg, Log: log, Lang: i18n.Lookup(cfg.Locale)}

	client, closeLLM, err := buildLLM(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	deps.addCloser(closeLLM)

	c, err := buildCache(cfg, log)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.Cache = c
	deps.addCloser(c.Close)
	if _, noop := c.(*cache.NoOpCache); !noop {
		client = llm.NewCachingClient(client, c, cfg.CacheTTL, log)
	}
	deps.LLM = client

	deps.Broker = events.NewBroker(log)
	pub, closePub, err := buildEvents(cfg, log, deps.Broker)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize events: %w", err)
	}
	deps.Events = pub
	deps.addCloser(closePub)

	deps.Sessions = chat.NewManager(deps.LLM, deps.Events, log, cfg.SessionIdleTTL)
	log.Info("language pack selected", "lang", deps.Lang.Lang)
	return deps, nil
}

func (d *Deps) addCloser(fn func() error) {
	if fn != nil {
		d.closers = append(d.closers, fn)
	}
}

func buildLLM(ctx context.Context, cfg config.Config, log *slog.Logger) (llm.Client, func() error, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		var opts []option.RequestOption
		if cfg.LLMBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.LLMBaseURL))
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel), cfg.LLMTimeout, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", client.Model(), "timeout", cfg.LLMTimeout)
		return client, nil, nil
	case "gemini":
		if cfg.GoogleProject == "" {
			return nil, nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when LLM_PROVIDER=gemini")
		}
		model := cfg.LLMModel
		if model == string(openai.ChatModelGPT4oMini) {
			model = "" // OpenAI default does not apply; use the Gemini default
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GoogleProject, cfg.GoogleLocation, model, cfg.GoogleCredentials, cfg.LLMTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		log.Info("using Gemini LLM client", "model", client.Model(), "location", cfg.GoogleLocation, "timeout", cfg.LLMTimeout)
		return client, client.Close, nil
	case "stub":
		log.Warn("using static LLM client; answers are canned")
		return llm.StaticClient{Reply: "This is a canned answer; configure LLM_PROVIDER for real responses."}, nil, nil
	default:
		return nil, nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, gemini, stub)", cfg.LLMProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "", "none":
		return cache.NewNoOpCache(), nil
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		log.Info("using Redis answer cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return c, nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis)", cfg.CacheProvider)
	}
}

func buildEvents(cfg config.Config, log *slog.Logger, broker *events.Broker) (events.Publisher, func() error, error) {
	switch cfg.EventsProvider {
	case "", "none":
		return broker, nil, nil
	case "nats":
		if cfg.NATSURL == "" {
			return nil, nil, fmt.Errorf("NATS_URL is required when EVENTS_PROVIDER=nats")
		}
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("mirroring session events to NATS", "url", cfg.NATSURL)
		np := events.NewNATSPublisher(log, nc)
		retrying := events.Retrying{Next: np, Attempts: 3, Base: 100 * time.Millisecond}
		return events.Multi(broker, retrying), np.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: none, nats)", cfg.EventsProvider)
	}
}
