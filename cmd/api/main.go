package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	_ "github.com/jackc/pgx/v5/stdlib"

	"consult-platform/internal/booking"
	"consult-platform/internal/events"
	"consult-platform/internal/handlers"
	"consult-platform/internal/messaging"
	"consult-platform/internal/middleware"
	"consult-platform/internal/repo"
	"consult-platform/internal/store"
	"consult-platform/internal/wallet"
	ws "consult-platform/internal/websocket"
	"consult-platform/pkg/logger"
)

type Config struct {
	HTTPAddr          string  `mapstructure:"HTTP_ADDR"`
	StoreBackend      string  `mapstructure:"STORE_BACKEND"` // memory | postgres | redis
	DSN               string  `mapstructure:"DSN"`
	RedisAddr         string  `mapstructure:"REDIS_ADDR"`
	JwtSecret         string  `mapstructure:"JWT_SECRET"`
	FeeRate           float64 `mapstructure:"FEE_RATE"`
	MinimumWithdrawal int64   `mapstructure:"MINIMUM_WITHDRAWAL"`
	ProcessingHours   int     `mapstructure:"WITHDRAWAL_PROCESSING_HOURS"`
	CompletionHours   int     `mapstructure:"WITHDRAWAL_COMPLETION_HOURS"`
}

// loadConfig reads config.env from the working directory, with environment
// variables taking precedence.
func loadConfig() (config Config, err error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("STORE_BACKEND", "memory")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}

func buildStore(config Config) (store.Store, error) {
	switch config.StoreBackend {
	case "postgres":
		db, err := sqlx.Connect("pgx", config.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to PostgreSQL store")
		return store.NewPostgres(db)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		logger.Info("Connected to Redis store")
		return store.NewRedis(rdb, ""), nil
	default:
		logger.Info("Using bounded in-memory store")
		return store.NewMemory(0), nil
	}
}

func main() {
	logger.Info("Starting consultation platform server...")

	config, err := loadConfig()
	if err != nil {
		logger.Fatal("cannot load config: ", err)
	}
	if config.JwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	kv, err := buildStore(config)
	if err != nil {
		logger.Fatal("cannot initialize store: ", err)
	}

	accounts := repo.NewAccounts(kv)
	bookings := repo.NewBookings(kv)
	withdrawals := repo.NewWithdrawals(kv)
	messages := repo.NewMessages(kv)
	notifications := repo.NewNotifications(kv)

	bus := events.NewBus()
	hub := ws.NewHub()
	go hub.Run()

	dispatcher := messaging.NewDispatcher(messages, notifications, bus)
	dispatcher.SetSink(hub)

	walletCfg := wallet.DefaultConfig()
	if config.FeeRate > 0 {
		walletCfg.FeeRate = config.FeeRate
	}
	if config.MinimumWithdrawal > 0 {
		walletCfg.MinimumWithdrawal = config.MinimumWithdrawal
	}
	if config.ProcessingHours > 0 {
		walletCfg.ProcessingAfter = time.Duration(config.ProcessingHours) * time.Hour
	}
	if config.CompletionHours > 0 {
		walletCfg.CompletedAfter = time.Duration(config.CompletionHours) * time.Hour
	}

	ledger := wallet.NewLedger(accounts, withdrawals, dispatcher, bus, walletCfg)
	defer ledger.Stop()

	// Re-arm progression timers for withdrawals left in flight by the
	// previous process (durable backends only; memory starts empty).
	if ids, err := accounts.ListIDs(context.Background()); err == nil {
		ledger.Rescan(context.Background(), ids)
	} else {
		logger.Warnf("withdrawal rescan skipped: %v", err)
	}

	manager := booking.NewManager(accounts, bookings, ledger, dispatcher, bus)

	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	authHandler := handlers.NewAuthHandler(accounts, config.JwtSecret)
	bookingHandler := handlers.NewBookingHandler(manager)
	walletHandler := handlers.NewWalletHandler(accounts, ledger)
	messagingHandler := handlers.NewMessagingHandler(dispatcher)
	wsHandler := handlers.NewWebSocketHandler(hub, config.JwtSecret)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(config.JwtSecret))
		{
			protected.GET("/me", authHandler.GetMe)

			protected.POST("/bookings", bookingHandler.Create)
			protected.POST("/bookings/:id/cancel", bookingHandler.Cancel)
			protected.POST("/bookings/:id/complete", bookingHandler.Complete)
			protected.GET("/bookings/upcoming", bookingHandler.ListUpcoming)
			protected.GET("/bookings/history", bookingHandler.ListHistory)

			protected.GET("/wallet", walletHandler.GetWallet)
			protected.POST("/withdrawals", walletHandler.InitiateWithdrawal)
			protected.GET("/withdrawals", walletHandler.ListWithdrawals)

			protected.POST("/messages", messagingHandler.Send)
			protected.GET("/conversations", messagingHandler.ListConversations)
			protected.POST("/conversations/:partnerId/read", messagingHandler.MarkConversationRead)
			protected.GET("/notifications", messagingHandler.ListNotifications)
			protected.POST("/notifications/:id/read", messagingHandler.MarkNotificationRead)
		}
	}

	r.GET("/ws", wsHandler.ServeWs)

	srv := &http.Server{
		Addr:    config.HTTPAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", config.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		logger.Fatal(err)
	}
}
