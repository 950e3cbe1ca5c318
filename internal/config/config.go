package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTP_PORT         string `env:"HTTP_PORT" env-default:"8080"`
	DB_STRING         string `env:"DB_STRING"`
	KAFKA_BROKERS     string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	NOTIFY_TOPIC      string `env:"NOTIFY_TOPIC" env-default:"seller-notifications"`
	PAYMENTS_TOPIC    string `env:"PAYMENTS_TOPIC" env-default:"payment-events"`
	PAYMENTS_GROUP_ID string `env:"PAYMENTS_GROUP_ID" env-default:"checkout-service"`
	BUS_BUFFER        int    `env:"BUS_BUFFER" env-default:"16"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
