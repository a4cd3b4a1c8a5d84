package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/amarnathnag/fitnect-cart/internal/cache"
	"github.com/amarnathnag/fitnect-cart/internal/cart"
	"github.com/amarnathnag/fitnect-cart/internal/catalog"
	"github.com/amarnathnag/fitnect-cart/internal/events"
	h "github.com/amarnathnag/fitnect-cart/internal/http"
	"github.com/amarnathnag/fitnect-cart/internal/notify"
	"github.com/amarnathnag/fitnect-cart/internal/order"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	CatalogDBPath     string
	CatalogMigrations string
	GuestDBPath       string
	GuestMigrations   string

	OrdersDB *order.Credentials

	KafkaBrokers []string
}

func loadConfig() *Config {
	ordersPort, err := strconv.Atoi(getEnv("ORDERS_DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("invalid ORDERS_DB_PORT: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CatalogDBPath:     getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrations: getEnv("CATALOG_MIGRATIONS", "internal/catalog/migrations"),
		GuestDBPath:       getEnv("GUEST_DB_PATH", "guest_carts.db"),
		GuestMigrations:   getEnv("GUEST_MIGRATIONS", "internal/cart/migrations"),

		OrdersDB: &order.Credentials{
			Host:              getEnv("ORDERS_DB_HOST", "localhost"),
			Port:              ordersPort,
			User:              getEnv("ORDERS_DB_USER", "postgres"),
			Password:          getEnv("ORDERS_DB_PASSWORD", "postgres"),
			DBName:            getEnv("ORDERS_DB_NAME", "ordersdb"),
			MigrationsDirPath: getEnv("ORDERS_MIGRATIONS", "internal/order/migrations"),
		},

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Catalog (sqlite)
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrations); err != nil {
		log.Fatalf("Failed to migrate catalog: %v", err)
	}
	log.Printf("Catalog ready at %s", cfg.CatalogDBPath)

	// Guest carts (sqlite)
	guestStore, err := cart.NewGuestStore(cfg.GuestDBPath)
	if err != nil {
		log.Fatalf("Failed to open guest cart store: %v", err)
	}
	defer guestStore.Close()
	if err := guestStore.RunMigrations(cfg.GuestMigrations); err != nil {
		log.Fatalf("Failed to migrate guest cart store: %v", err)
	}

	// Authenticated carts (mongo)
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Client().Disconnect(ctx)
	authStore := cart.NewMongoStore(mongoDB)
	if err := authStore.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Cart cache (redis)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")
	cartCache := cache.NewRedisCache(redisClient)

	// Orders (postgres)
	orderRepo, err := order.NewRepository(cfg.OrdersDB)
	if err != nil {
		log.Fatalf("Failed to connect to orders database: %v", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(cfg.OrdersDB); err != nil {
		log.Fatalf("Failed to migrate orders database: %v", err)
	}
	log.Printf("Connected to postgres orders database")

	// Order events (kafka)
	publisher := events.NewPublisher(cfg.KafkaBrokers...)
	defer publisher.Close()

	notifier := notify.LogNotifier{}
	controller := cart.NewController(guestStore, authStore, catalogRepo, cartCache, notifier)
	assembler := order.NewAssembler(orderRepo, controller, publisher, notifier)

	registry := h.NewCouponRegistry(notifier)
	cartHandler := h.NewCartHandler(controller, catalogRepo, cfg.RequestTimeout)
	couponHandler := h.NewCouponHandler(controller, registry, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(assembler, controller, registry, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(orderRepo, cfg.RequestTimeout)
	productHandler := h.NewProductHandler(catalogRepo, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.SessionMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{product_id}", productHandler.GetProduct)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/clear", cartHandler.ClearCart)
			r.Post("/merge", cartHandler.MergeCart)
		})
		r.Route("/coupon", func(r chi.Router) {
			r.Post("/apply", couponHandler.Apply)
			r.Post("/remove", couponHandler.Remove)
		})
		r.Post("/checkout", checkoutHandler.PlaceOrder)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(r, "fitnect-cart"),
	}

	go func() {
		log.Printf("HTTP server listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
