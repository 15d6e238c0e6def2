package config

import "github.com/kelseyhightower/envconfig"

// Config carries every environment-driven setting for the backend.
// DATABASE_URL, PRICING_URL and JWT_SECRET are hard requirements; redis and
// kafka are optional collaborators and are skipped when their address is
// left empty. An unset JWT_SECRET must refuse to boot rather than verify
// tokens signed with an empty key.
type Config struct {
	Addr          string `envconfig:"ADDR" default:":8080"`
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret     string `envconfig:"JWT_SECRET" required:"true"`
	PricingURL    string `envconfig:"PRICING_URL" required:"true"`
	ComplianceURL string `envconfig:"COMPLIANCE_URL" default:""`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	KafkaBrokers  string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic    string `envconfig:"KAFKA_TOPIC" default:"order-status-events"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
