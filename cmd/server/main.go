package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sacolao-service/config"
	"sacolao-service/internal/api"
	"sacolao-service/internal/broker"
	"sacolao-service/internal/redisclient"
	"sacolao-service/internal/service"
	"sacolao-service/internal/store"
	"sacolao-service/internal/util"
	"sacolao-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting sacolao service")

	tp, err := util.InitTracer("sacolao-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrderEvents)
	defer orderProducer.Close()
	stockProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStockEvents)
	defer stockProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(orderProducer, stockProducer)

	stockService := service.NewStockService(db, eventPublisher)
	orderService := service.NewOrderService(db, eventPublisher)
	lifecycleService := service.NewLifecycleService(db, stockService, eventPublisher)
	checkoutService := service.NewCheckoutService(
		db, orderService, stockService, redisClient, eventPublisher, cfg.Worker.CheckoutKeyTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	counterConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCounterOrders, cfg.Kafka.ConsumerGroup)
	counterWorker := worker.NewCounterOrderWorker(counterConsumer, db, orderService, stockService)
	go func() {
		if err := counterWorker.Start(workerCtx); err != nil {
			log.Printf("Counter order worker error: %v", err)
		}
	}()

	reconciler := worker.NewReconciler(db, redisClient, cfg.Worker.ReconcileInterval)
	go func() {
		if err := reconciler.Start(workerCtx); err != nil {
			log.Printf("Reconciler error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, orderService, lifecycleService, stockService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	counterWorker.Stop()

	log.Println("Server exited")
}
