package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/bytebyteboot/payment-gateway/pkg/config"
	"github.com/bytebyteboot/payment-gateway/pkg/logger"
	"github.com/bytebyteboot/payment-gateway/pkg/middleware"
	"github.com/bytebyteboot/payment-gateway/pkg/order"
	orderApi "github.com/bytebyteboot/payment-gateway/pkg/order/api"
	"github.com/bytebyteboot/payment-gateway/pkg/razorpay"
	"github.com/bytebyteboot/payment-gateway/pkg/webhook"
)

func main() {
	cfg := config.Parse()

	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		log.Printf("Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("unable to reach PostgreSQL: %v", err)
	}

	razorpayClient, err := razorpay.NewClient(cfg.RazorpayAPIAddress,
		cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RequestTimeout)
	if err != nil {
		log.Fatalf("can't create razorpay client: %v", err)
	}

	ordersRepo := order.NewOrderRepo(db)
	orderService := order.NewService(ordersRepo, razorpayClient,
		cfg.RazorpayKeySecret, cfg.Currency)
	orderHandler := orderApi.NewOrderHandler(orderService)
	webhookHandler := webhook.NewWebhookHandler(orderService, cfg.RazorpayWebhookSecret)

	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	// Payments
	api.HandleFunc("/payments/create-order", orderHandler.CreateOrder).Methods("POST")
	api.HandleFunc("/payments/verify", orderHandler.VerifyPayment).Methods("POST")
	api.HandleFunc("/payments/order/{orderId}", orderHandler.GetOrder).Methods("GET")
	api.HandleFunc("/payments/orders", orderHandler.GetOrdersList).Methods("GET")
	api.HandleFunc("/payments/cancel/{orderId}", orderHandler.CancelOrder).Methods("POST")

	// Webhooks
	api.HandleFunc("/webhooks/razorpay", webhookHandler.HandleRazorpay).Methods("POST")

	logMiddleware := middleware.NewLoggingMiddleware(logger.Run(cfg.LogLevel))
	r.Use(logMiddleware.SetupTracing)
	r.Use(logMiddleware.SetupLogging)
	r.Use(logMiddleware.AccessLog)
	r.Use(middleware.CORS)

	log.Printf("Serving at http://%s/", cfg.RunAddress)
	log.Fatalln(http.ListenAndServe(cfg.RunAddress, r))
}
