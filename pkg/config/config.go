package config

import (
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress            string
	DatabaseURI           string
	RazorpayAPIAddress    string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	Currency              string
	RequestTimeout        time.Duration
	LogLevel              string
}

func Parse() *Config {
	cfg := Config{
		// Defaults
		RunAddress:         "localhost:8080",
		RazorpayAPIAddress: "https://api.razorpay.com",
		Currency:           "INR",
		RequestTimeout:     30 * time.Second,
		LogLevel:           "debug",
	}
	// Secrets usually live in a local .env during development.
	_ = godotenv.Load()

	cfg.updateFromFlags()
	cfg.updateFromEnv()
	return &cfg
}

func (cfg *Config) updateFromFlags() {
	flagRunAddress := flag.String("a", cfg.RunAddress, "Server address.")
	flagDatabaseURI := flag.String("d", cfg.DatabaseURI, "Postgres DSN.")
	flagRazorpayAddress := flag.String("r", cfg.RazorpayAPIAddress, "Razorpay API address.")

	flag.Parse()

	cfg.RunAddress = *flagRunAddress
	cfg.DatabaseURI = *flagDatabaseURI
	cfg.RazorpayAPIAddress = *flagRazorpayAddress
}

func (cfg *Config) updateFromEnv() {
	if addr, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.RunAddress = addr
	}
	if db, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.DatabaseURI = db
	}
	if addr, ok := os.LookupEnv("RAZORPAY_API_ADDRESS"); ok {
		cfg.RazorpayAPIAddress = addr
	}
	if keyID, ok := os.LookupEnv("RAZORPAY_KEY_ID"); ok {
		cfg.RazorpayKeyID = keyID
	}
	if secret, ok := os.LookupEnv("RAZORPAY_KEY_SECRET"); ok {
		cfg.RazorpayKeySecret = secret
	}
	if secret, ok := os.LookupEnv("RAZORPAY_WEBHOOK_SECRET"); ok {
		cfg.RazorpayWebhookSecret = secret
	}
	if currency, ok := os.LookupEnv("CURRENCY"); ok {
		cfg.Currency = currency
	}
	if timeout, ok := os.LookupEnv("REQUEST_TIMEOUT"); ok {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = lvl
	}
}
