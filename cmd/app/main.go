package main

import (
	"database/sql"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greenmile/dispensary-backend/internal/cart"
	"github.com/greenmile/dispensary-backend/internal/checkout"
	"github.com/greenmile/dispensary-backend/internal/config"
	"github.com/greenmile/dispensary-backend/internal/limits"
	"github.com/greenmile/dispensary-backend/internal/order"
	"github.com/greenmile/dispensary-backend/internal/user"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	db := mustOpenDB(cfg.DatabaseURL)
	defer db.Close()
	ensureSchema(db)

	app := fiber.New()
	setupCORS(app)
	app.Use(requestLog(log))

	// user endpoints first; sign-in/sign-up stay public
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)
	userHandler.RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
	}))

	userHandler.RegisterProtectedRoutes(app)

	// compliance client is optional; without it the guard is a no-op and
	// the regulator-facing check still happens server-side at submission
	var fetcher limits.Fetcher
	if cfg.ComplianceURL != "" {
		fetcher = limits.NewHTTPFetcher(cfg.ComplianceURL, log)
	}
	limits.NewHandler(fetcher).RegisterProtectedRoutes(app)

	// cart sessions, optionally persisted in redis across restarts
	var cache cart.CartCache
	if cfg.RedisAddr != "" {
		cache = cart.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	pricing := cart.NewHTTPPricingClient(cfg.PricingURL)
	cartSessions := cart.NewSessions(pricing, cache, log)
	cart.NewHandler(cartSessions, fetcher).RegisterProtectedRoutes(app)

	// orders, with best-effort status events on kafka
	var publisher order.StatusPublisher
	if cfg.KafkaBrokers != "" {
		kp := order.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}
	orderService := order.NewService(order.NewPostgresRepository(db), publisher, log)
	order.NewHandler(orderService).RegisterProtectedRoutes(app)

	// checkout flow on top of cart + orders
	submitter := order.NewSubmitter(orderService, userService)
	checkoutSessions := checkout.NewSessions(cartSessions, submitter)
	checkout.NewHandler(checkoutSessions).RegisterProtectedRoutes(app)

	log.Info("starting server", zap.String("addr", cfg.Addr))
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Actor-Name",
	}))
}

func requestLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)))
		return err
	}
}

func mustOpenDB(url string) *sql.DB {
	db, err := sql.Open("pgx", url)
	if err != nil {
		panic(err)
	}
	if err := db.Ping(); err != nil {
		panic(err)
	}
	return db
}

func ensureSchema(db *sql.DB) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
        "userId" SERIAL PRIMARY KEY,
        email TEXT NOT NULL UNIQUE,
        password TEXT NOT NULL,
        "firstName" TEXT NOT NULL DEFAULT '',
        "lastName" TEXT NOT NULL DEFAULT '',
        phone TEXT NOT NULL DEFAULT '',
        "dateOfBirth" TEXT NOT NULL DEFAULT '',
        "medicalCardId" TEXT,
        "orderIds" integer[] NOT NULL DEFAULT ARRAY[]::integer[],
        "createdAt" TEXT,
        "updatedAt" TEXT
    )`,
		`CREATE TABLE IF NOT EXISTS orders (
        "orderID" SERIAL PRIMARY KEY,
        "orderNumber" TEXT NOT NULL,
        "customerID" INT NOT NULL,
        "customerName" TEXT NOT NULL DEFAULT '',
        "customerEmail" TEXT NOT NULL DEFAULT '',
        "customerPhone" TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        items jsonb NOT NULL DEFAULT '[]',
        "fulfillmentMethod" TEXT NOT NULL,
        "deliveryAddress" jsonb,
        "paymentMethod" TEXT NOT NULL,
        "subtotalCents" INT NOT NULL DEFAULT 0,
        "promoDiscountCents" INT NOT NULL DEFAULT 0,
        "taxCents" INT NOT NULL DEFAULT 0,
        "deliveryFeeCents" INT NOT NULL DEFAULT 0,
        "totalCents" INT NOT NULL DEFAULT 0,
        "statusHistory" jsonb NOT NULL DEFAULT '[]',
        "createdAt" TEXT,
        "updatedAt" TEXT
    )`,
		`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders ("customerID")`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			panic(err)
		}
	}
}
