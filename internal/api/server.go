package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/farmgate/agromarket-api/internal/config"
	"github.com/farmgate/agromarket-api/internal/database"
	"github.com/farmgate/agromarket-api/internal/gateway"
	"github.com/farmgate/agromarket-api/internal/handlers"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/outbox"
	"github.com/farmgate/agromarket-api/internal/repository"
	"github.com/farmgate/agromarket-api/internal/service"
	"github.com/farmgate/agromarket-api/internal/settlement"
	"github.com/farmgate/agromarket-api/pkg/kafka"
	"github.com/farmgate/agromarket-api/pkg/logger"
	"github.com/farmgate/agromarket-api/pkg/ratelimit"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server
	db         *database.Database

	orderService         *service.OrderService
	paymentService       *service.PaymentService
	paymentMethodService *service.PaymentMethodService
	inventoryService     *service.InventoryService
	financeService       *service.FinanceService

	outboxProcessor      *outbox.Processor
	settlementProcessor  *settlement.Processor
	settlementReconciler *settlement.Reconciler
	kafkaProducer        *kafka.Producer
	kafkaConsumer        *kafka.Consumer

	paymentLimiter *ratelimit.UserRateLimiter
}

// NewServer creates a new API server with the given configuration and logger
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	r := mux.NewRouter()
	db, err := database.New(cfg, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	orderRepo := repository.NewOrderRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)
	inventoryRepo := repository.NewInventoryRepository(db, logger)
	financeRepo := repository.NewFinanceRepository(db, logger)
	methodRepo := repository.NewPaymentMethodRepository(db, logger)
	transactionRepo := repository.NewPaymentTransactionRepository(db, logger)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	orderService := service.NewOrderService(orderRepo, inventoryRepo, logger)
	inventoryService := service.NewInventoryService(inventoryRepo, logger)
	financeService := service.NewFinanceService(financeRepo, logger)
	paymentMethodService := service.NewPaymentMethodService(methodRepo, logger)
	paymentService := service.NewPaymentService(
		transactionRepo,
		orderRepo,
		methodRepo,
		cfg.Settlement.Delay,
		logger,
	)

	gatewayClient := gateway.NewClient(cfg.Settlement.GatewayApproval, logger)

	settlementProcessor := settlement.NewProcessor(transactionRepo, gatewayClient, settlement.ProcessorConfig{
		PollingInterval: cfg.Settlement.PollInterval,
		BatchSize:       cfg.Settlement.BatchSize,
	}, logger)

	settlementReconciler := settlement.NewReconciler(transactionRepo, settlement.ReconcilerConfig{
		Interval:   cfg.Settlement.ReconcileEvery,
		StuckAfter: cfg.Settlement.StuckAfter,
		BatchSize:  cfg.Settlement.BatchSize,
	}, logger)

	outboxProcessor := outbox.NewProcessor(outboxRepo, outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}, logger)

	kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.EventsTopic, logger)

	outboxProcessor.RegisterHandler(models.EventOrderCreated, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventOrderStatusChanged, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventPaymentCompleted, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventPaymentFailed, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventInventoryAdjusted, kafkaHandler)

	consumerConfig := &kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        []string{cfg.Kafka.EventsTopic},
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}

	kafkaConsumer, err := kafka.NewConsumer(consumerConfig, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	paymentEventsHandler := handlers.NewPaymentEventsHandler(logger)
	kafkaConsumer.RegisterHandler(cfg.Kafka.EventsTopic, paymentEventsHandler)

	server := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		config: cfg,
		db:     db,

		orderService:         orderService,
		paymentService:       paymentService,
		paymentMethodService: paymentMethodService,
		inventoryService:     inventoryService,
		financeService:       financeService,

		outboxProcessor:      outboxProcessor,
		settlementProcessor:  settlementProcessor,
		settlementReconciler: settlementReconciler,
		kafkaProducer:        kafkaProducer,
		kafkaConsumer:        kafkaConsumer,

		// 5 payment attempts burst, refilling one every 10 seconds
		paymentLimiter: ratelimit.NewUserRateLimiter(5, 0.1),
	}

	server.setupRoutes()

	outboxProcessor.Start()
	settlementProcessor.Start()
	settlementReconciler.Start()

	if err := kafkaConsumer.Start(); err != nil {
		logger.Error("Failed to start Kafka consumer", "error", err)
		// Non-fatal, continue without the consumer
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its background workers
func (s *Server) Shutdown(ctx context.Context) error {
	s.settlementReconciler.Stop()
	s.settlementProcessor.Stop()
	s.outboxProcessor.Stop()

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for the API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	authed.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	authed.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	authed.HandleFunc("/orders/mine", s.getMyOrdersHandler).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}/items", s.addOrderItemsHandler).Methods(http.MethodPost)
	authed.HandleFunc("/orders/{id}/items/{itemId}", s.updateOrderItemHandler).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}/items/{itemId}", s.deleteOrderItemHandler).Methods(http.MethodDelete)
	authed.HandleFunc("/orders/{id}/delivery", s.assignDeliveryHandler).Methods(http.MethodPost)
	authed.HandleFunc("/orders/{id}/delivery", s.unassignDeliveryHandler).Methods(http.MethodDelete)

	authed.HandleFunc("/payment-methods", s.addPaymentMethodHandler).Methods(http.MethodPost)
	authed.HandleFunc("/payment-methods", s.getPaymentMethodsHandler).Methods(http.MethodGet)
	authed.HandleFunc("/payment-methods/{id}/default", s.setDefaultPaymentMethodHandler).Methods(http.MethodPost)
	authed.HandleFunc("/payment-methods/{id}", s.deletePaymentMethodHandler).Methods(http.MethodDelete)

	payments := authed.NewRoute().Subrouter()
	payments.Use(s.paymentRateLimitMiddleware)
	payments.HandleFunc("/payments", s.processPaymentHandler).Methods(http.MethodPost)

	authed.HandleFunc("/payments", s.getPaymentsHandler).Methods(http.MethodGet)
	authed.HandleFunc("/payments/{id}", s.getPaymentByIDHandler).Methods(http.MethodGet)

	authed.HandleFunc("/inventory", s.createInventoryItemHandler).Methods(http.MethodPost)
	authed.HandleFunc("/inventory", s.getInventoryHandler).Methods(http.MethodGet)
	authed.HandleFunc("/inventory/{id}", s.getInventoryItemHandler).Methods(http.MethodGet)
	authed.HandleFunc("/inventory/{id}/quantity", s.adjustInventoryHandler).Methods(http.MethodPatch)

	authed.HandleFunc("/finance/records", s.createFinanceRecordHandler).Methods(http.MethodPost)
	authed.HandleFunc("/finance/records", s.getFinanceRecordsHandler).Methods(http.MethodGet)
	authed.HandleFunc("/finance/summary", s.getFinanceSummaryHandler).Methods(http.MethodGet)
}
