package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/config"
	"habitroom-backend/internal/database"
	"habitroom-backend/internal/handlers"
	"habitroom-backend/internal/ledger"
	"habitroom-backend/internal/live"
	"habitroom-backend/internal/logging"
	"habitroom-backend/internal/mailer"
	customMiddleware "habitroom-backend/internal/middleware"
	"habitroom-backend/internal/repository"
	"habitroom-backend/internal/tokens"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("❌ " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal("❌ invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName, logger)
	if err != nil {
		logger.Fatal("❌ Failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	// Initialize repositories
	dir := repository.NewDirectory()
	tokenRepo := repository.NewAuthTokenRepo()

	// Ensure indexes
	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := dir.EnsureIndexes(idxCtx); err != nil {
		logger.Warn("⚠️  failed to create indexes", zap.Error(err))
	}
	if err := tokenRepo.EnsureIndexes(idxCtx); err != nil {
		logger.Warn("⚠️  failed to create token indexes", zap.Error(err))
	}
	cancel()

	// Live feed: Redis fans events across instances; without it events stay
	// in this process.
	var events live.Broadcaster
	if cfg.RedisURL != "" {
		rb, err := live.NewRedisBroadcaster(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal("❌ Failed to connect to Redis", zap.Error(err))
		}
		defer rb.Close()
		events = rb
	} else {
		events = live.NewLocalBroadcaster(256)
	}

	clock := calendar.System{}
	day := handlers.Day{Clock: clock, Location: cfg.Location}
	issuer := tokens.NewIssuer(cfg.JWTSecret, clock)
	mail := mailer.New(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, logger)
	completionLedger := ledger.New(dir.Completions, events, clock, logger)
	board := handlers.NewBoard(dir, day)
	hub := live.NewHub(board.Live, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(tokenRepo, dir.Users, issuer, mail, clock, handlers.AuthConfig{
		BaseURL:        cfg.HTTP.BaseURL,
		DeepLinkScheme: cfg.HTTP.DeepLinkScheme,
		FromName:       cfg.Email.FromName,
	}, logger)
	userHandler := handlers.NewUserHandler(dir.Users, logger)
	roomHandler := handlers.NewRoomHandler(dir.Rooms, dir.Users, dir, events, logger)
	habitHandler := handlers.NewHabitHandler(dir.Habits, dir.Users, events, logger)
	completionHandler := handlers.NewCompletionHandler(dir.Habits, dir.Users, completionLedger, day, logger)
	leaderboardHandler := handlers.NewLeaderboardHandler(board, dir.Users, day, logger)
	liveHandler := handlers.NewLiveHandler(hub, dir.Users, logger)
	unsubscribeHandler := handlers.NewUnsubscribeHandler(issuer, dir.Users, logger)

	// Setup chi router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"habitroom-backend"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Post("/auth/request", authHandler.RequestLogin)
	r.Get("/auth/verify", authHandler.VerifyToken)
	r.Get("/auth/redirect", authHandler.RedirectToApp)
	r.Get("/unsubscribe", unsubscribeHandler.Unsubscribe)

	// Protected routes (JWT required)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.JWTAuth(issuer))

		r.Get("/user/status", userHandler.GetStatus)
		r.Patch("/user/profile", userHandler.UpdateProfile)
		r.Patch("/user/reminders", userHandler.UpdateReminders)

		r.Post("/rooms", roomHandler.CreateRoom)
		r.Post("/rooms/leave", roomHandler.LeaveRoom)
		r.Route("/rooms/{roomID}", func(r chi.Router) {
			r.Post("/join", roomHandler.JoinRoom)
			r.Get("/members", roomHandler.ListMembers)
			r.Get("/habits", habitHandler.ListHabits)
			r.Post("/habits", habitHandler.CreateHabit)
			r.Delete("/habits/{habitID}", habitHandler.DeleteHabit)
			r.Get("/leaderboard", leaderboardHandler.GetLeaderboard)
			r.Get("/live", liveHandler.Subscribe)
		})

		r.Post("/habits/{habitID}/increment", completionHandler.Increment)
		r.Post("/habits/{habitID}/decrement", completionHandler.Decrement)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx, events)
	})
	g.Go(func() error {
		logger.Info("🚀 Habit Rooms backend starting", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("❌ Server failed", zap.Error(err))
	}
}
