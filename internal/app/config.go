package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/clients/messagingsvc"
	"github.com/tradepost/composite-backend/internal/clients/transactionsvc"
	"github.com/tradepost/composite-backend/internal/clients/usersvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/utils"
)

// Config collects every tunable in one place. Environment variables supply
// the defaults; an optional YAML file named by CONFIG_FILE overlays them.
type Config struct {
	Port           string   `yaml:"port"`
	JWTSecretKey   string   `yaml:"jwt_secret_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ImageWorkers   int      `yaml:"image_workers"`

	ItemServiceURL        string `yaml:"item_service_url"`
	UserServiceURL        string `yaml:"user_service_url"`
	TransactionServiceURL string `yaml:"transaction_service_url"`
	MessagingServiceURL   string `yaml:"messaging_service_url"`

	ItemServiceTimeout        time.Duration `yaml:"item_service_timeout"`
	UserServiceTimeout        time.Duration `yaml:"user_service_timeout"`
	TransactionServiceTimeout time.Duration `yaml:"transaction_service_timeout"`
	MessagingServiceTimeout   time.Duration `yaml:"messaging_service_timeout"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	itemCfg := itemsvc.ConfigFromEnv()
	userCfg := usersvc.ConfigFromEnv()
	txnCfg := transactionsvc.ConfigFromEnv()
	msgCfg := messagingsvc.ConfigFromEnv()

	cfg := Config{
		Port:           utils.GetEnv("PORT", "8080", log),
		JWTSecretKey:   utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		ImageWorkers:   utils.GetEnvAsInt("IMAGE_WORKERS", 4, log),
		AllowedOrigins: splitOrigins(os.Getenv("ALLOWED_ORIGINS")),

		ItemServiceURL:        itemCfg.BaseURL,
		UserServiceURL:        userCfg.BaseURL,
		TransactionServiceURL: txnCfg.BaseURL,
		MessagingServiceURL:   msgCfg.BaseURL,

		ItemServiceTimeout:        itemCfg.Timeout,
		UserServiceTimeout:        userCfg.Timeout,
		TransactionServiceTimeout: txnCfg.Timeout,
		MessagingServiceTimeout:   msgCfg.Timeout,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
		log.Info("Applied config file overlay", "path", path)
	}
	return cfg, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
