package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragchat/internal/answer"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	embopenai "ragchat/internal/embedding/openai"
	fragmemory "ragchat/internal/fragment/memory"
	fragredis "ragchat/internal/fragment/redis"
	genopenai "ragchat/internal/generation/openai"
	histmemory "ragchat/internal/history/memory"
	histredis "ragchat/internal/history/redis"
	idxmemory "ragchat/internal/index/memory"
	idxqdrant "ragchat/internal/index/qdrant"
	"ragchat/internal/retrieval"
	"ragchat/internal/service"
	"ragchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath   string
		role      string
		sessionID string
		sources   bool
		topK      int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.StringVar(&role, "role", "", "Caller role: admin, lecturer, student (default anonymous)")
	flag.StringVar(&sessionID, "session", "", "Session identifier (generated if empty)")
	flag.BoolVar(&sources, "sources", false, "Append source links to answers")
	flag.IntVar(&topK, "top-k", 0, "Number of fragments to retrieve (0 uses the configured default)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, err := assemble(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble services")
	}

	if sessionID == "" {
		sessionID = "anon_" + uuid.NewString()
	}

	// One-shot mode: answer the question from the arguments and exit.
	if args := flag.Args(); len(args) > 0 {
		question := strings.Join(args, " ")
		res, err := orch.Answer(ctx, service.Request{
			Question:       question,
			SessionID:      sessionID,
			Role:           role,
			IncludeSources: sources,
			TopK:           topK,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("answer failed")
		}
		fmt.Println(res.Answer)
		return
	}

	m := tui.New(orch, tui.Options{
		SessionID:      sessionID,
		Role:           role,
		IncludeSources: sources,
		TopK:           topK,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal().Err(err).Msg("tui crashed")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
}

// assemble builds the orchestrator from the configured component
// implementations.
func assemble(ctx context.Context, cfg *config.AppConfig) (*service.Orchestrator, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "openai", "":
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var idx domain.VectorIndex
	switch cfg.Index.Type {
	case "memory", "":
		idx = idxmemory.NewIndex()
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		idx = idxqdrant.NewIndex(idxqdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown index: %s", cfg.Index.Type)
	}

	var frags domain.FragmentStore
	switch cfg.Fragments.Type {
	case "memory", "":
		frags = fragmemory.NewStore()
	case "redis":
		frags = fragredis.NewStore(newRedisClient(cfg.Fragments.Redis), cfg.Fragments.Namespace)
	default:
		return nil, fmt.Errorf("unknown fragment store: %s", cfg.Fragments.Type)
	}

	var history domain.HistoryStore
	ttl := time.Duration(cfg.History.TTLSecs) * time.Second
	switch cfg.History.Type {
	case "memory", "":
		store := histmemory.NewStore(cfg.History.MaxTurns, ttl)
		store.StartJanitor(ctx, time.Minute)
		history = store
	case "redis":
		history = histredis.NewStore(newRedisClient(cfg.History.Redis), cfg.History.MaxTurns, ttl)
	default:
		return nil, fmt.Errorf("unknown history store: %s", cfg.History.Type)
	}

	gen, err := genopenai.NewClient(genopenai.Config{
		BaseURL:     cfg.Generator.BaseURL,
		APIKeyEnv:   cfg.Generator.APIKeyEnv,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("generator init: %w", err)
	}

	agg := retrieval.New(emb, idx, frags)
	return service.New(history, agg, answer.New(gen), cfg.Retrieval.TopK), nil
}

func newRedisClient(cfg *config.RedisConfig) *goredis.Client {
	if cfg == nil {
		cfg = &config.RedisConfig{Addr: "localhost:6379"}
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
