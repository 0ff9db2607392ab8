package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Runtime holds process settings for the host commands.
type Runtime struct {
	RPCEndpoint      string `env:"SOLANA_RPC_ENDPOINT"`
	WSEndpoint       string `env:"SOLANA_WS_ENDPOINT"`
	PriceFeedAccount string `env:"PRICE_FEED_ACCOUNT,default=Gv2NQnFfSQgzqFoGGm4bFX5q6oBKPPXRJQDG3voqfWJt"`
	TokenMint        string `env:"TOKEN_MINT"`
	MintAuthority    string `env:"MINT_AUTHORITY"`

	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`
	UseMemory     bool   `env:"USE_MEMORY,default=false"`

	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	MetricsAddr string `env:"METRICS_ADDR,default=:9090"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// LoadRuntime reads an optional .env file and decodes the environment.
// Variables already present in the environment win over the file.
func LoadRuntime(envFile string) (*Runtime, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var rt Runtime
	if err := envdecode.Decode(&rt); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if rt.PriceFeedAccount == "" {
		rt.PriceFeedAccount = DefaultPriceFeedAccount
	}
	return &rt, nil
}

// StorageMode reports which store backend the settings select.
func (r *Runtime) StorageMode() (string, error) {
	if r.UseMemory {
		return "memory", nil
	}
	if r.PostgresDSN == "" || r.ClickhouseDSN == "" {
		return "", fmt.Errorf("POSTGRES_DSN and CLICKHOUSE_DSN are required (set USE_MEMORY=true for in-memory storage)")
	}
	return "sql", nil
}
