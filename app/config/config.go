package config

import (
	"os"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	DB       PostgresConfig
	Stripe   StripeConfig
	Email    EmailConfig
	QueueURL string
}

type PostgresConfig struct {
	Username       string
	Password       string
	URL            string
	Port           string
	MigrationsPath string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
}

type EmailConfig struct {
	SendGridAPIKey string
	FromAddress    string
	FromName       string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		QueueURL: os.Getenv("QUEUE_URL"),
		DB: PostgresConfig{
			Username:       os.Getenv("POSTGRES_USER"),
			Password:       os.Getenv("POSTGRES_PWD"),
			URL:            os.Getenv("POSTGRES_URL"),
			Port:           os.Getenv("POSTGRES_PORT"),
			MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			FrontendURL:   os.Getenv("FRONTEND_URL"),
		},
		Email: EmailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromAddress:    os.Getenv("EMAIL_FROM_ADDRESS"),
			FromName:       os.Getenv("EMAIL_FROM_NAME"),
		},
	}

	return cfg, nil
}
