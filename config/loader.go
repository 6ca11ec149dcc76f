package config

import (
	// Go Internal Packages
	"fmt"
	"os"

	// Local Packages
	utils "payflow/utils"

	// External Packages
	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
)

// Load loads the default configuration and overrides it with the config file at path.
// A missing file is not an error so that the defaults alone can run a dev instance.
func Load(path string) (*koanf.Koanf, Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return nil, Config{}, fmt.Errorf("loading default config: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, Config{}, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	conf := Config{}
	if err := k.Unmarshal("", &conf); err != nil {
		return nil, Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return k, LoadSecrets(conf), nil
}

// LoadSecrets Loads the secret variables and overrides the config. Variables from a .env
// file in the working directory are applied first when present.
func LoadSecrets(k Config) Config {
	_ = godotenv.Load()

	if v := os.Getenv("MONGO_URI"); v != "" {
		k.Mongo.URI = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		k.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URI"); v != "" {
		k.Redis.URI = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		k.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		k.Kafka.Brokers = utils.SplitCSV(v)
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		k.Auth.JWTSecret = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		k.Webhook.Secret = v
	}
	if v := os.Getenv("WEBHOOK_ALLOWED_IPS"); v != "" {
		k.Webhook.AllowedIPs = utils.SplitCSV(v)
	}
	if v := os.Getenv("GATEWAY_CLIENT_ID"); v != "" {
		k.Gateway.ClientID = v
	}
	if v := os.Getenv("GATEWAY_CLIENT_SECRET"); v != "" {
		k.Gateway.ClientSecret = v
	}
	if v := os.Getenv("IS_PROD_MODE"); v != "" {
		k.IsProdMode = v == "true"
	}
	return k
}
