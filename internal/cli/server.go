package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"writing-game-service/internal/app"
	"writing-game-service/internal/config"
	"writing-game-service/internal/grading"
	"writing-game-service/internal/infra/memory"
	pgloader "writing-game-service/internal/infra/postgres"
	redisstore "writing-game-service/internal/infra/redis"
	transport "writing-game-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the writing game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.TemplateLoader = memory.NewStaticTemplateLoader(memory.BuiltinTemplates())
	if pool != nil {
		loader = pgloader.NewTemplateLoader(pool)
	}

	templateTTL := config.TTLDuration(cfg.Templates.TTL, 10*time.Minute)
	var templates app.TemplateRepository
	if redisClient != nil {
		templates = redisstore.NewTemplateRepository(redisClient, loader, templateTTL)
	} else {
		templates = memory.NewTemplateRepository(loader, templateTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	if cfg.Grading.APIKey == "" {
		log.Printf("GROQ_API_KEY is not set; every answer will be graded 0 with a connectivity message")
	}
	grader := grading.NewClient(grading.Config{
		BaseURL:     cfg.Grading.BaseURL,
		APIKey:      cfg.Grading.APIKey,
		Model:       cfg.Grading.Model,
		Temperature: cfg.Grading.Temp,
		MaxTokens:   cfg.Grading.MaxTokens,
		Timeout:     config.TTLDuration(cfg.Grading.Timeout, grading.DefaultTimeout),
		MaxRetries:  cfg.Grading.MaxRetries,
		MaxScore:    maxScore(cfg),
	})

	gate, err := app.NewTeacherGate(cfg.Teacher.Passphrase, cfg.Teacher.PassphraseHash)
	if err != nil {
		return err
	}
	if gate.Open() {
		log.Printf("no teacher passphrase configured; the teacher socket is open to anyone")
	}

	service := app.NewGameService(app.NewGameStore(sessions), grader, templates, gate)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	wsHandler.Routes(mux)

	// WebSocket handlers hijack the connection, so the write timeout only bounds plain HTTP routes.
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting writing game on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// maxScore keeps the 0-3 scale unless the config overrides it; a negative value disables the cap.
func maxScore(cfg config.Config) int {
	switch {
	case cfg.Grading.MaxScore < 0:
		return 0
	case cfg.Grading.MaxScore == 0:
		return grading.DefaultMaxScore
	default:
		return cfg.Grading.MaxScore
	}
}
