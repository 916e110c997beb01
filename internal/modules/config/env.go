package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyLegacyEnv поддерживает старые имена переменных (значения в секундах и пипсах).
func applyLegacyEnv(c *Config) {
	c.Broker.Mode = strings.ToLower(getenvDefault("OANDA_MODE", c.Broker.Mode))
	suffix := "PRACTICE"
	if c.Broker.Mode == "live" {
		suffix = "LIVE"
	}
	c.Broker.APIKey = getenvDefault("OANDA_API_KEY_"+suffix, c.Broker.APIKey)
	c.Broker.AccountID = getenvDefault("OANDA_ACCOUNT_ID_"+suffix, c.Broker.AccountID)

	c.Trading.OrderUnits = floatFromEnv("ORDER_SIZE", c.Trading.OrderUnits)
	c.Trading.ActivationThreshold = floatFromEnv("ACTIVATION_THRESHOLD", c.Trading.ActivationThreshold)
	c.Trading.TrailingGap = floatFromEnv("TRAILING_GAP", c.Trading.TrailingGap)
	c.Trading.TakeProfitPips = floatFromEnv("TAKE_PROFIT_PIPS", c.Trading.TakeProfitPips)
	c.Trading.EntryThresholdPips = floatFromEnv("ENTRY_THRESHOLD_PIPS", c.Trading.EntryThresholdPips)
	c.Trading.PollInterval = secondsFromEnv("POLL_INTERVAL", c.Trading.PollInterval)
	c.Trading.ConditionalInterval = secondsFromEnv("CONDITIONAL_INTERVAL", c.Trading.ConditionalInterval)
	c.Scheduler.EntryInterval = secondsFromEnv("CYCLE_INTERVAL", c.Scheduler.EntryInterval)
	c.Scheduler.RiskInterval = secondsFromEnv("RISK_UPDATE_INTERVAL", c.Scheduler.RiskInterval)

	c.Telegram.Token = getenvDefault("TELEGRAM_TOKEN", c.Telegram.Token)
	c.Telegram.ChatID = int64(intFromEnv("TELEGRAM_CHAT_ID", int(c.Telegram.ChatID)))
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Journal.DSN = dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			c.Journal.Driver = "postgres"
		}
	}
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// secondsFromEnv: "60": секунды, "90s"/"2m": обычная длительность.
func secondsFromEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
