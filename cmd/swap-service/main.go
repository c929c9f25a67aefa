package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/db"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/logging"
	"github.com/rajivgeraev/rewear-api/internal/memstore"
	"github.com/rajivgeraev/rewear-api/internal/metrics"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/moderation"
	"github.com/rajivgeraev/rewear-api/internal/services/auth"
	exchangesvc "github.com/rajivgeraev/rewear-api/internal/services/exchange"
	"github.com/rajivgeraev/rewear-api/internal/services/item"
	moderationsvc "github.com/rajivgeraev/rewear-api/internal/services/moderation"
	"github.com/rajivgeraev/rewear-api/internal/utils"
	"github.com/rajivgeraev/rewear-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	store, closeStore, err := openLedger(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("❌ Ошибка при инициализации хранилища")
	}
	defer closeStore()

	engine := exchange.NewEngine(store, logging.Component(log, "exchange"), exchange.Config{
		PointsForGivingItem: cfg.Exchange.PointsForGivingItem,
	})
	gate := moderation.NewGate(store, logging.Component(log, "moderation"))
	hub := websocket.NewManager(logging.Component(log, "websocket"))

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "ReWear API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		ctx, cancel := utils.GetContext()
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Создаём сервисы
	authService := auth.NewAuthService(cfg, store, logging.Component(log, "auth"))
	authMiddleware := middleware.AuthMiddleware(authService.GetJWTService(), store, logging.Component(log, "auth"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logging.Component(log, "ratelimit"))
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	itemService := item.NewItemService(store, gate, engine, logging.Component(log, "items"))
	exchangeService := exchangesvc.NewExchangeService(engine, store, hub, logging.Component(log, "swaps"))
	moderationService := moderationsvc.NewModerationService(store, gate, engine, logging.Component(log, "moderator"))

	// Регистрируем маршруты
	authService.SetupRoutes(app, authMiddleware)
	itemService.SetupRoutes(app, authMiddleware)
	exchangeService.SetupRoutes(app, authMiddleware, limiter.Handler())
	moderationService.SetupRoutes(app, authMiddleware)

	// WebSocket уведомления на отдельном порту
	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler(authService.GetJWTService()))
	wsServer := &http.Server{
		Addr:              ":" + cfg.WSPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.WSPort).Info("✅ WebSocket сервер запущен")
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("❌ Ошибка WebSocket сервера")
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("Остановка сервиса")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		hub.Shutdown()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Ошибка остановки WebSocket сервера")
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("Ошибка остановки HTTP сервера")
		}
	}()

	// Запускаем сервер
	log.WithFields(logrus.Fields{"port": cfg.Port, "storage": cfg.StorageDriver}).Info("✅ ReWear API запущен")
	if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.WithError(err).Error("❌ Ошибка HTTP сервера")
	}
}

// openLedger открывает хранилище по STORAGE_DRIVER
func openLedger(ctx context.Context, cfg *config.Config, log *logrus.Logger) (ledger.Ledger, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("Используется хранилище в памяти, данные не сохраняются между запусками")
		return memstore.New(), func() {}, nil
	}

	store, err := db.Open(ctx, cfg, logging.Component(log, "db"))
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
