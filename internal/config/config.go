// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	// RegistryBackend is "postgres" or "memory".
	RegistryBackend string
	Server          ServerConfig
	Database        DatabaseConfig
	JWT             JWTConfig
	AWS             AWSConfig
	Blockchain      BlockchainConfig
	RateLimit       RateLimitConfig
	I18n            I18nConfig
	Frontend        FrontendConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	SessionTokenTTL int // in hours
	// ChallengeTTL bounds how long a sign-in nonce stays valid.
	ChallengeTTL time.Duration
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ArchiveBucket   string
}

type BlockchainConfig struct {
	Network         string
	RPC_URL         string
	ContractAddress string
	ExplorerURL     string
	// CallTimeout bounds every ledger read.
	CallTimeout       time.Duration
	CrossValidateHash bool
	// DevRoles seeds the static ledger used when RPC_URL is empty.
	DevRoles string
}

type RateLimitConfig struct {
	VerifyPerSecond float64
	VerifyBurst     int
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		RegistryBackend: getEnv("REGISTRY_BACKEND", "postgres"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "trace_chain"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", defaultJWTSecret),
			SessionTokenTTL: getEnvAsInt("JWT_SESSION_TTL", 12),
			ChallengeTTL:    getEnvAsDuration("AUTH_CHALLENGE_TTL", 5*time.Minute),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ArchiveBucket:   getEnv("AWS_ARCHIVE_BUCKET", "trace-chain-certificates"),
		},
		Blockchain: BlockchainConfig{
			Network:           getEnv("BLOCKCHAIN_NETWORK", "sepolia"),
			RPC_URL:           getEnv("BLOCKCHAIN_RPC_URL", ""),
			ContractAddress:   getEnv("BLOCKCHAIN_CONTRACT_ADDRESS", ""),
			ExplorerURL:       getEnv("BLOCKCHAIN_EXPLORER_URL", "https://etherscan.io"),
			CallTimeout:       getEnvAsDuration("BLOCKCHAIN_CALL_TIMEOUT", 5*time.Second),
			CrossValidateHash: getEnvAsBool("VERIFY_CROSS_VALIDATE_HASH", true),
			DevRoles:          getEnv("BLOCKCHAIN_DEV_ROLES", ""),
		},
		RateLimit: RateLimitConfig{
			VerifyPerSecond: getEnvAsFloat("VERIFY_RATE_PER_SECOND", 5),
			VerifyBurst:     getEnvAsInt("VERIFY_RATE_BURST", 10),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	switch c.RegistryBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown registry backend %q", c.RegistryBackend)
	}

	if c.Blockchain.CallTimeout <= 0 {
		return fmt.Errorf("blockchain call timeout must be positive, got %s", c.Blockchain.CallTimeout)
	}

	if c.Blockchain.RPC_URL == "" && c.Environment == "production" {
		return fmt.Errorf("blockchain RPC URL is required in production")
	}

	if c.Blockchain.RPC_URL != "" && !common.IsHexAddress(c.Blockchain.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", c.Blockchain.ContractAddress)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// Accepts Go duration strings ("750ms", "5s") or a bare number of milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
