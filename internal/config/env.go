package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ListenerEnv is the environment-driven configuration recognized by the
// standalone listener. Only the enumerated variables are read.
type ListenerEnv struct {
	BotToken       string        // BOT_TOKEN
	AdminChatID    int64         // ADMIN_CHAT_ID
	TestGroupID    int64         // TEST_GROUP_ID
	ResponseWindow time.Duration // RESPONSE_WINDOW, default 2m
}

// LoadListenerEnv reads the listener variables from a .env file (when
// present) and the process environment.
func LoadListenerEnv() ListenerEnv {
	// Absent .env is fine; real environment still applies.
	_ = godotenv.Load()

	return ListenerEnv{
		BotToken:       os.Getenv("BOT_TOKEN"),
		AdminChatID:    envInt64("ADMIN_CHAT_ID"),
		TestGroupID:    envInt64("TEST_GROUP_ID"),
		ResponseWindow: envDuration("RESPONSE_WINDOW", 2*time.Minute),
	}
}

func envInt64(key string) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
