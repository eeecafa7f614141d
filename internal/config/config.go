package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Knowledge KnowledgeConfig
	Ai        AIConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	TurnTopic          string
}

type DatabaseConfig struct {
	Connection string
}

// KnowledgeConfig points at the two pre-embedded JSON collections: the manual
// fragments and the edition compatibility notes.
type KnowledgeConfig struct {
	DocsPath     string
	VersionsPath string
	TopK         int
}

type AIConfig struct {
	LLMProvider        string // "openai" or "ollama"
	EmbeddingProvider  string // "openai" or "ollama"
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIVisionModel  string
	OpenAIEmbedModel   string
	OllamaBaseURL      string
	OllamaModel        string
	OllamaEmbedModel   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			TurnTopic:          getEnv("TURN_COMPLETED_TOPIC_NAME", "TURN_COMPLETED"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Knowledge: KnowledgeConfig{
			DocsPath:     getEnv("ABLETON_DOCS_PATH", "data/ableton_docs_with_embeddings.json"),
			VersionsPath: getEnv("ABLETON_VERSIONS_PATH", "data/ableton_versions_with_embeddings.json"),
			TopK:         getEnvAsInt("RAG_TOP_K", 5),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
			OpenAIVisionModel: getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
			OpenAIEmbedModel:  getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-large"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_MODEL", "llama3"),
			OllamaEmbedModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
