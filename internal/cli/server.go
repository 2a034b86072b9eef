package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brainrace-live-service/internal/app"
	"brainrace-live-service/internal/config"
	"brainrace-live-service/internal/domain"
	"brainrace-live-service/internal/infra/memory"
	pgstore "brainrace-live-service/internal/infra/postgres"
	redisstore "brainrace-live-service/internal/infra/redis"
	transport "brainrace-live-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

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
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var supplier app.RoundSupplier
	if redisClient != nil {
		supplier = redisstore.NewRoundRepository(redisClient, loader, questionTTL)
	} else {
		supplier = memory.NewRoundRepository(loader, questionTTL)
	}

	var recorders []app.ScoreRecorder
	var leaderboard transport.LeaderboardSource
	if pool != nil {
		store := pgstore.NewScoreStore(pool)
		recorders = append(recorders, store)
		leaderboard = store
	} else {
		store := memory.NewScoreStore()
		recorders = append(recorders, store)
		leaderboard = store
	}
	if redisClient != nil {
		lb := redisstore.NewLeaderboard(redisClient)
		recorders = append(recorders, lb)
		leaderboard = lb
	}

	registry := app.NewRegistry(supplier, fanoutRecorder(recorders), gameSettings(cfg), log)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go registry.Run(runCtx)

	wsHandler := transport.NewWSHandler(registry, log)
	lbHandler := transport.NewLeaderboardHandler(leaderboard, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/leaderboard", lbHandler)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting live battle server", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func gameSettings(cfg config.Config) app.Settings {
	settings := app.DefaultSettings()
	if cfg.Game.MaxPlayers > 0 {
		settings.MaxPlayers = cfg.Game.MaxPlayers
	}
	if cfg.Game.RoundsPerGame > 0 {
		settings.RoundsPerGame = cfg.Game.RoundsPerGame
	}
	if cfg.Game.CountdownSeconds > 0 {
		settings.CountdownSeconds = cfg.Game.CountdownSeconds
	}
	settings.QuestionTime = config.TTLDuration(cfg.Game.QuestionTime, settings.QuestionTime)
	settings.RevealHold = config.TTLDuration(cfg.Game.RevealHold, settings.RevealHold)
	settings.Scoring.FastAnswerWindow = config.TTLDuration(cfg.Game.FastAnswerWindow, settings.Scoring.FastAnswerWindow)
	if cfg.Game.SpeedBonus > 0 {
		settings.Scoring.SpeedBonus = cfg.Game.SpeedBonus
	}
	settings.IdleTimeout = config.TTLDuration(cfg.Game.IdleTimeout, settings.IdleTimeout)
	settings.FinishedRetention = config.TTLDuration(cfg.Game.FinishedRetention, settings.FinishedRetention)
	settings.ReapInterval = config.TTLDuration(cfg.Game.ReapInterval, settings.ReapInterval)
	return settings
}

// multiRecorder fans final scores out to every configured sink.
type multiRecorder []app.ScoreRecorder

func fanoutRecorder(recorders []app.ScoreRecorder) app.ScoreRecorder {
	if len(recorders) == 1 {
		return recorders[0]
	}
	return multiRecorder(recorders)
}

func (m multiRecorder) RecordScores(ctx context.Context, records []domain.ScoreRecord) error {
	var firstErr error
	for _, recorder := range m {
		if err := recorder.RecordScores(ctx, records); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sampleQuestions provides a minimal built-in bank; swap the loader for the
// Postgres-backed one in production.
func sampleQuestions() []domain.QuestionRound {
	return []domain.QuestionRound{
		{
			Question:     "Which ancient civilization built the pyramids of Giza?",
			Choices:      []string{"Mesopotamians", "Egyptians", "Greeks", "Romans"},
			CorrectIndex: 1,
			Category:     "ancient-civilizations",
			Difficulty:   "easy",
			Explanation:  "The pyramids of Giza were built by the ancient Egyptians around 2560 BCE.",
		},
		{
			Question:     "In which year did World War II end?",
			Choices:      []string{"1943", "1944", "1945", "1946"},
			CorrectIndex: 2,
			Category:     "world-wars",
			Difficulty:   "easy",
			Explanation:  "World War II ended in 1945 with the surrender of Japan in September.",
		},
		{
			Question:     "Who wrote 'The Republic'?",
			Choices:      []string{"Aristotle", "Socrates", "Plato", "Epicurus"},
			CorrectIndex: 2,
			Category:     "ancient-philosophy",
			Difficulty:   "easy",
			Explanation:  "Plato wrote 'The Republic', a dialogue on justice and the ideal state.",
		},
		{
			Question:     "Which treaty formally ended World War I?",
			Choices:      []string{"Treaty of Versailles", "Treaty of Paris", "Treaty of Vienna", "Treaty of Ghent"},
			CorrectIndex: 0,
			Category:     "world-wars",
			Difficulty:   "medium",
			Explanation:  "The Treaty of Versailles was signed in 1919 between the Allies and Germany.",
		},
		{
			Question:     "What was the codename for the Allied invasion of Normandy?",
			Choices:      []string{"Operation Torch", "Operation Overlord", "Operation Market Garden", "Operation Husky"},
			CorrectIndex: 1,
			Category:     "world-wars",
			Difficulty:   "medium",
			Explanation:  "Operation Overlord began on D-Day, June 6, 1944.",
		},
		{
			Question:     "Which wall divided a European capital during the Cold War?",
			Choices:      []string{"Hadrian's Wall", "The Berlin Wall", "The Maginot Line", "The Iron Curtain"},
			CorrectIndex: 1,
			Category:     "cold-war",
			Difficulty:   "medium",
			Explanation:  "The Berlin Wall split Berlin from 1961 until 1989.",
		},
		{
			Question:     "Which Byzantine emperor codified Roman law in the 6th century?",
			Choices:      []string{"Constantine", "Justinian I", "Theodosius", "Heraclius"},
			CorrectIndex: 1,
			Category:     "medieval-europe",
			Difficulty:   "hard",
			Explanation:  "Justinian I commissioned the Corpus Juris Civilis, the basis of civil law.",
		},
		{
			Question:     "Which element did Marie Curie discover alongside radium?",
			Choices:      []string{"Uranium", "Polonium", "Thorium", "Actinium"},
			CorrectIndex: 1,
			Category:     "science",
			Difficulty:   "hard",
			Explanation:  "Curie discovered polonium in 1898, naming it after her native Poland.",
		},
		{
			Question:     "Which battle in 1815 ended Napoleon's rule?",
			Choices:      []string{"Austerlitz", "Leipzig", "Waterloo", "Trafalgar"},
			CorrectIndex: 2,
			Category:     "revolutionary-periods",
			Difficulty:   "hard",
			Explanation:  "Napoleon was defeated at Waterloo and exiled to Saint Helena.",
		},
	}
}
