package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	DataDir     string
	HTTPPort    string
	LogLevel    string
	JWTSecret   string

	// Gateway settings. PromptID selects the canned system prompt stored with
	// the provider; when empty the service falls back to a plain chat
	// completion using SystemPrompt.
	PromptID       string
	PromptVersion  string
	SystemPrompt   string
	GatewayTimeout time.Duration

	// Prompt-size caps. Policy knobs, not correctness invariants.
	HistoryWindow  int
	ExcerptBudget  int
	TranscriptCap  int
	MaxUploadBytes int64
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		DatabaseURL:    getEnv("DATABASE_URL", "healthmate.db"),
		DataDir:        getEnv("DATA_DIR", "user_data"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		PromptID:       getEnv("OPENAI_PROMPT_ID", ""),
		PromptVersion:  getEnv("OPENAI_PROMPT_VERSION", "1"),
		SystemPrompt:   getEnv("SYSTEM_PROMPT", defaultSystemPrompt),
		GatewayTimeout: getEnvAsDuration("GATEWAY_TIMEOUT", 90*time.Second),
		HistoryWindow:  getEnvAsInt("HISTORY_WINDOW", 10),
		ExcerptBudget:  getEnvAsInt("EXCERPT_BUDGET", 500),
		TranscriptCap:  getEnvAsInt("TRANSCRIPT_CAP", 50),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) << 20,
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

const defaultSystemPrompt = "You are a personal health assistant. Use the user's health " +
	"information and the listed reference materials to give practical, safe guidance. " +
	"Recommend consulting a medical professional for anything serious."

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
