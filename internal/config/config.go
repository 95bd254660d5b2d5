package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envPrefix namespaces every setting read from the environment.
const envPrefix = "LRS_"

// Recognizer backends.
const (
	RecognizerDNN         = "dnn"
	RecognizerOllama      = "ollama"
	RecognizerRekognition = "rekognition"
)

// Store backends.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Selection policies for choosing which detection is recognized.
const (
	SelectFirst      = "first"
	SelectConfidence = "confidence"
)

type Config struct {
	AppName string
	Port    int

	YoloWeights          string
	InputSize            int
	RecognizerBackend    string
	RecognizerWeightsDir string
	OllamaURL            string
	OllamaModel          string
	AWSRegion            string

	StoreBackend         string
	AuthorizedPlatesPath string
	DatabasePath         string

	ConfidenceThreshold float64 // debug overlay only
	SelectionPolicy     string
	MaxUploadMB         int
	APIKey              string

	HistoryEnabled    bool
	ReadBufferLimit   int
	ReadFlushInterval time.Duration

	LogDirectory string
}

// Load reads an optional .env file and then the LRS_* environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	modelsDir := getEnv("MODELS_DIR", "models")

	return &Config{
		AppName:              getEnv("APP_NAME", "LRS2.0"),
		Port:                 getEnvAsInt("PORT", 8000),
		YoloWeights:          getEnv("YOLO_WEIGHTS", filepath.Join(modelsDir, "plate_detector.onnx")),
		InputSize:            getEnvAsInt("INPUT_SIZE", 640),
		RecognizerBackend:    strings.ToLower(getEnv("RECOGNIZER_BACKEND", RecognizerDNN)),
		RecognizerWeightsDir: getEnv("RECOGNIZER_WEIGHTS_DIR", filepath.Join(modelsDir, "recognizer")),
		OllamaURL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:          getEnv("OLLAMA_MODEL", "qwen2.5vl:3b"),
		AWSRegion:            getEnv("AWS_REGION", "eu-central-1"),
		StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", StoreJSON)),
		AuthorizedPlatesPath: getEnv("AUTHORIZED_PLATES_PATH", "authorized_plates.json"),
		DatabasePath:         getEnv("DATABASE_PATH", filepath.Join("data", "lrs.db")),
		ConfidenceThreshold:  getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		SelectionPolicy:      strings.ToLower(getEnv("SELECTION_POLICY", SelectFirst)),
		MaxUploadMB:          getEnvAsInt("MAX_UPLOAD_MB", 20),
		APIKey:               getEnv("API_KEY", ""),
		HistoryEnabled:       getEnvAsBool("HISTORY_ENABLED", true),
		ReadBufferLimit:      getEnvAsInt("READ_BUFFER_LIMIT", 50),
		ReadFlushInterval:    time.Duration(getEnvAsInt("READ_FLUSH_INTERVAL", 10)) * time.Second,
		LogDirectory:         getEnv("LOG_DIR", "logs"),
	}
}

// Validate rejects unknown backends and out-of-range numbers.
func (c *Config) Validate() error {
	switch c.RecognizerBackend {
	case RecognizerDNN, RecognizerOllama, RecognizerRekognition:
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.RecognizerBackend)
	}

	switch c.StoreBackend {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	switch c.SelectionPolicy {
	case SelectFirst, SelectConfidence:
	default:
		return fmt.Errorf("unknown selection policy %q", c.SelectionPolicy)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.InputSize < 32 {
		return fmt.Errorf("input size must be at least 32")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.HistoryEnabled && c.ReadBufferLimit < 1 {
		return fmt.Errorf("read buffer limit must be positive")
	}
	return nil
}

// MaxUploadBytes is the request body limit for image uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
