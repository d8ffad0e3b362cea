package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	UploadsBucket   string
	UploadsPrefix   string
	LLMProvider     string
	LLMModel        string
	LLMVisionModel  string
	OpenAIAPIKey    string
	OCRAPIURL       string
	OCRAPIKey       string
	OCRTimeout      time.Duration
	DatabaseURL     string
	RedisURL        string
	QueueURL        string
	Env             string

	QA QAConfig
}

// QAConfig holds the pipeline tunables.
type QAConfig struct {
	Concurrency    int
	ChartTimeout   time.Duration
	LockTTL        time.Duration
	LLMTimeout     time.Duration
	LLMMaxAttempts int
	LLMBackoff     time.Duration
	MinTextChars   int
	FrameCount     int

	// FetchAllowHosts restricts URL sources; empty allows any host.
	FetchAllowHosts []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		UploadsBucket:   getEnv("UPLOADS_S3_BUCKET", ""),
		UploadsPrefix:   getEnv("UPLOADS_S3_PREFIX", ""),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:        getEnv("LLM_MODEL", ""),
		LLMVisionModel:  getEnv("LLM_VISION_MODEL", ""),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OCRAPIURL:       getEnv("OCR_API_URL", ""),
		OCRAPIKey:       getEnv("OCR_API_KEY", ""),
		OCRTimeout:      getSeconds("OCR_TIMEOUT_SECONDS", 120),
		DatabaseURL:     dbURL,
		RedisURL:        getEnv("REDIS_URL", ""),
		QueueURL:        getEnv("QA_SQS_QUEUE_URL", ""),
		Env:             env,
		QA: QAConfig{
			Concurrency:     getInt("QA_CONCURRENCY", 4),
			ChartTimeout:    getSeconds("QA_CHART_TIMEOUT_SECONDS", 600),
			LockTTL:         getSeconds("QA_LOCK_TTL_SECONDS", 900),
			LLMTimeout:      getSeconds("QA_LLM_TIMEOUT_SECONDS", 90),
			LLMMaxAttempts:  getInt("QA_LLM_MAX_ATTEMPTS", 3),
			LLMBackoff:      time.Duration(getInt("QA_LLM_BACKOFF_MS", 2000)) * time.Millisecond,
			MinTextChars:    getInt("QA_MIN_TEXT_CHARS", 100),
			FrameCount:      getInt("QA_FRAME_COUNT", 8),
			FetchAllowHosts: splitAndTrim(getEnv("EXTRACT_FETCH_ALLOW_HOSTS", "")),
		},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return val
}

func getSeconds(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Second
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
