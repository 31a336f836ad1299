package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// IstLoc is the NSE market calendar zone (UTC+5:30). The daily broadcast
// counter rolls over on this calendar, not UTC.
var IstLoc = time.FixedZone("IST", 19800)

// Config is built once at startup and passed explicitly into every
// constructor that needs credentials or tunables. Nothing reads the
// environment after Load returns.
type Config struct {
	Version string

	// Broker (Dhan)
	DhanClientID    string
	DhanAccessToken string
	DhanBaseURL     string

	// Telegram
	TelegramBotToken string
	AdminChatID      int64
	FreeChannelID    string
	VIPChannelID     string

	// Engine tunables
	PollIntervalSecs int
	DefaultQuantity  int
	FreeDailyLimit   int
	StrikeStep       int
	RiskTemplateFile string

	// Ops
	MetricsAddr   string
	MaxLogSizeMB  int64
	MaxLogBackups int
}

// Load initializes the configuration.
// It tries to read a .env file and checks for necessary environment variables.
func Load() *Config {
	// Load .env variables into the process environment
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	// Define which variables are critical and confidential.
	requiredSecretVars := map[string]bool{
		"DHAN_CLIENT_ID":           true,
		"DHAN_ACCESS_TOKEN":        true,
		"TELEGRAM_BOT_TOKEN":       true,
		"TELEGRAM_ADMIN_CHAT_ID":   true,
		"TELEGRAM_FREE_CHANNEL_ID": true,
		"TELEGRAM_VIP_CHANNEL_ID":  true,
	}

	var missing []string
	for key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	// Print variables defined in .env, masking secrets to their last 4 chars.
	if envMap, err := godotenv.Read(); err == nil {
		log.Println("--- .env File Variables ---")
		for key, val := range envMap {
			if requiredSecretVars[key] {
				masked := "***"
				if len(val) > 4 {
					masked = "***" + val[len(val)-4:]
				}
				log.Printf("%s=%s", key, masked)
			} else {
				log.Printf("%s=%s", key, val)
			}
		}
		log.Println("---------------------------")
	}

	return &Config{
		DhanClientID:    os.Getenv("DHAN_CLIENT_ID"),
		DhanAccessToken: os.Getenv("DHAN_ACCESS_TOKEN"),
		DhanBaseURL:     getEnvAsString("DHAN_BASE_URL", ""),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminChatID:      getEnvAsInt64("TELEGRAM_ADMIN_CHAT_ID", 0),
		FreeChannelID:    os.Getenv("TELEGRAM_FREE_CHANNEL_ID"),
		VIPChannelID:     os.Getenv("TELEGRAM_VIP_CHANNEL_ID"),

		PollIntervalSecs: getEnvAsInt("SENTRY_POLL_INTERVAL_SEC", 30),
		DefaultQuantity:  getEnvAsInt("SENTRY_DEFAULT_QTY", 25),
		FreeDailyLimit:   getEnvAsInt("SENTRY_FREE_DAILY_LIMIT", 1),
		StrikeStep:       getEnvAsInt("SENTRY_STRIKE_STEP", 50),
		RiskTemplateFile: getEnvAsString("SENTRY_RISK_TEMPLATE_FILE", ""),

		MetricsAddr:   getEnvAsString("SENTRY_METRICS_ADDR", ":9108"),
		MaxLogSizeMB:  getEnvAsInt64("SENTRY_MAX_LOG_SIZE_MB", 10),
		MaxLogBackups: getEnvAsInt("SENTRY_MAX_LOG_BACKUPS", 3),
	}
}
