package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Solana   SolanaConfig
	Referral ReferralConfig
	Claims   ClaimsConfig
	Payments PaymentsConfig
	Admin    AdminConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
}

// SolanaConfig holds on-chain verification settings
type SolanaConfig struct {
	Network              string
	MerchantWallet       string
	VerifyTimeoutSeconds int
}

// ReferralConfig holds referral bonus amounts. The product shipped two
// divergent bonus tables at different times, so the amounts are
// parameterized here instead of hardcoded in the referral engine.
type ReferralConfig struct {
	ReferrerBonus int64
	RefereeBonus  int64
}

// ClaimsConfig holds daily-claim settings. DayKeyUTCOffset pins the
// business day to a fixed timezone: claims bucket by calendar date at
// UTC+offset, not UTC and not the user's local time.
type ClaimsConfig struct {
	DayKeyUTCOffset int
}

// PaymentsConfig holds payment-flow settings. When RequireManualApproval
// is true (the default), a confirmed payment still needs an admin
// approval before the plan is upgraded.
type PaymentsConfig struct {
	RequireManualApproval bool
	StrictPlanConfig      bool
	ReconcileMinutes      int
}

// AdminConfig holds the admin allow-list (wallet addresses)
type AdminConfig struct {
	Wallets []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "airdrop"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Solana: SolanaConfig{
			Network:              getEnv("SOLANA_NETWORK", "devnet"),
			MerchantWallet:       getEnv("MERCHANT_WALLET", ""),
			VerifyTimeoutSeconds: getEnvInt("VERIFY_TIMEOUT_SECONDS", 15),
		},
		Referral: ReferralConfig{
			ReferrerBonus: int64(getEnvInt("REFERRER_BONUS", 20)),
			RefereeBonus:  int64(getEnvInt("REFEREE_BONUS", 10)),
		},
		Claims: ClaimsConfig{
			DayKeyUTCOffset: getEnvInt("DAY_KEY_UTC_OFFSET", 3),
		},
		Payments: PaymentsConfig{
			RequireManualApproval: getEnvBool("REQUIRE_MANUAL_APPROVAL", true),
			StrictPlanConfig:      getEnvBool("STRICT_PLAN_CONFIG", true),
			ReconcileMinutes:      getEnvInt("PAYMENT_RECONCILE_MINUTES", 5),
		},
		Admin: AdminConfig{
			Wallets: splitList(getEnv("ADMIN_WALLETS", "")),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Solana.MerchantWallet == "" {
		return nil, fmt.Errorf("MERCHANT_WALLET is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a fallback default
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool gets a boolean environment variable with a fallback default
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// splitList splits a comma-separated env value, trimming blanks
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
