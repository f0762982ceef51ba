package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev" validate:"oneof=dev prod"`

	Port        uint16 `env:"PORT"         envDefault:"8080" validate:"min=1,max=65535"`
	MetricsPort uint16 `env:"METRICS_PORT" envDefault:"9090" validate:"max=65535"` // 0 disables the metrics server

	// 0 leaves inbound frame size unbounded.
	ReadLimit     int64         `env:"WS_READ_LIMIT" envDefault:"0"   validate:"min=0"`
	SendQueueSize int           `env:"WS_SEND_QUEUE" envDefault:"256" validate:"min=1"`
	WriteWait     time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s" validate:"gt=0"`
	PongWait      time.Duration `env:"WS_PONG_WAIT"  envDefault:"60s" validate:"gt=0"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

// PingPeriod must stay below PongWait so a healthy peer always answers in time.
func (c *Config) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
