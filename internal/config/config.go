package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names accepted in the provider setting.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	Provider           string        `mapstructure:"provider"`
	ModelName          string        `mapstructure:"model_name"`
	EmbeddingModelName string        `mapstructure:"embedding_model_name"`
	ChunkSize          int           `mapstructure:"chunk_size"`
	ChunkOverlap       int           `mapstructure:"chunk_overlap"`
	IndexDirectory     string        `mapstructure:"index_directory"`
	MaxQuestions       int           `mapstructure:"max_questions"`
	MinQuestions       int           `mapstructure:"min_questions"`
	RetrievalK         int           `mapstructure:"retrieval_k"`
	Temperature        float64       `mapstructure:"temperature"`
	GenerationTimeout  time.Duration `mapstructure:"generation_timeout"`
	EmbeddingTimeout   time.Duration `mapstructure:"embedding_timeout"`
	DefaultTopic       string        `mapstructure:"default_topic"`

	Ollama OllamaConfig `mapstructure:"ollama"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Server ServerConfig `mapstructure:"server"`
	R2     R2Config     `mapstructure:"r2"`
	Log    LogConfig    `mapstructure:"log"`

	DatabaseURL string `mapstructure:"database_url"`
}

type OllamaConfig struct {
	URL string `mapstructure:"url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Port               string `mapstructure:"port"`
	Mode               string `mapstructure:"mode"`
	SessionSecret      string `mapstructure:"session_secret"`
	FrontendURL        string `mapstructure:"frontend_url"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	MaxUploadMB        int64  `mapstructure:"max_upload_mb"`
}

// R2Config is optional; publishing is disabled unless every field is set.
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicURL       string `mapstructure:"public_url"`
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.Bucket != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.PublicURL != ""
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
	File string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("chunk_size", 1200)
	v.SetDefault("chunk_overlap", 300)
	v.SetDefault("index_directory", "./vector_db")
	v.SetDefault("max_questions", 20)
	v.SetDefault("min_questions", 3)
	v.SetDefault("retrieval_k", 5)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("generation_timeout", 60*time.Second)
	v.SetDefault("embedding_timeout", 60*time.Second)
	v.SetDefault("default_topic", "contenido del documento")

	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("server.rate_limit_per_minute", 10)
	v.SetDefault("server.max_upload_mb", 64)

	v.SetDefault("log.mode", "development")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("ollama.url", "OLLAMA_URL")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "GIN_MODE")
	v.BindEnv("server.session_secret", "SESSION_SECRET")
	v.BindEnv("server.frontend_url", "FRONTEND_URL")

	v.BindEnv("database_url", "DATABASE_URL")

	v.BindEnv("r2.account_id", "CLOUDFLARE_ACCOUNT_ID")
	v.BindEnv("r2.bucket", "R2_BUCKET_NAME")
	v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	v.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	v.BindEnv("log.mode", "LOG_MODE")
	v.BindEnv("log.file", "LOG_FILE")
}

// LoadDotEnv loads a .env file from the working directory. A missing file is
// not an error; the caller falls back to the process environment.
func LoadDotEnv() (loaded bool, err error) {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("load .env: %w", err)
	}
	return true, nil
}

// Load reads config.yaml from path (optional), then QUIZGEN_* environment
// variables and the well-known variable names bound in bindEnv.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyProviderDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var providerModels = map[string][2]string{
	ProviderOllama: {"llama3.2:latest", "nomic-embed-text"},
	ProviderGemini: {"gemini-2.0-flash", "text-embedding-004"},
	ProviderOpenAI: {"gpt-4o-mini", "text-embedding-3-small"},
}

// applyProviderDefaults fills model names left empty with the provider's
// defaults.
func (c *Config) applyProviderDefaults() {
	models, ok := providerModels[c.Provider]
	if !ok {
		return
	}
	if c.ModelName == "" {
		c.ModelName = models[0]
	}
	if c.EmbeddingModelName == "" {
		c.EmbeddingModelName = models[1]
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.MaxQuestions <= 0 {
		return fmt.Errorf("max_questions must be positive, got %d", c.MaxQuestions)
	}
	if c.MinQuestions <= 0 || c.MinQuestions > c.MaxQuestions {
		return fmt.Errorf("min_questions must be in [1, %d], got %d", c.MaxQuestions, c.MinQuestions)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval_k must be positive, got %d", c.RetrievalK)
	}
	if c.GenerationTimeout <= 0 || c.EmbeddingTimeout <= 0 {
		return errors.New("generation_timeout and embedding_timeout must be positive")
	}
	if c.ModelName == "" || c.EmbeddingModelName == "" {
		return errors.New("model_name and embedding_model_name must be set")
	}
	if c.IndexDirectory == "" {
		return errors.New("index_directory must be set")
	}
	switch c.Provider {
	case ProviderOllama:
		if c.Ollama.URL == "" {
			return errors.New("ollama.url must be set for the ollama provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("GEMINI_API_KEY environment variable not set")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("OPENAI_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}
