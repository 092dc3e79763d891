package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"embedding"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Blob struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"blob"`

	Queue struct {
		URL            string `yaml:"url"`
		TaggingStream  string `yaml:"tagging_stream"`
		EmbedStream    string `yaml:"embedding_stream"`
		BatchSize      int    `yaml:"batch_size"`
		WaitSeconds    int    `yaml:"wait_seconds"`
		IdleSeconds    int    `yaml:"idle_seconds"`
		MessageTimeout int    `yaml:"message_timeout_seconds"`
	} `yaml:"queue"`

	Cache struct {
		Addr       string `yaml:"addr"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Tagging struct {
		MaxCandidates  int     `yaml:"max_candidates"`
		DedupThreshold float64 `yaml:"dedup_threshold"`
	} `yaml:"tagging"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/scribe/config.yaml"),
			"/etc/scribe/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.Model == "" {
		config.Embedding.Model = "all-minilm:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.VectorDim == 0 {
		config.Embedding.VectorDim = 384
	}

	if config.Blob.Bucket == "" {
		config.Blob.Bucket = "documents"
	}

	if config.Queue.URL == "" {
		config.Queue.URL = "nats://localhost:4222"
	}
	if config.Queue.TaggingStream == "" {
		config.Queue.TaggingStream = "doc-tagging"
	}
	if config.Queue.EmbedStream == "" {
		config.Queue.EmbedStream = "doc-embedding"
	}
	if config.Queue.BatchSize == 0 {
		config.Queue.BatchSize = 5
	}
	if config.Queue.WaitSeconds == 0 {
		config.Queue.WaitSeconds = 10
	}
	if config.Queue.IdleSeconds == 0 {
		config.Queue.IdleSeconds = 2
	}
	if config.Queue.MessageTimeout == 0 {
		config.Queue.MessageTimeout = 120
	}

	if config.Cache.Addr == "" {
		config.Cache.Addr = "localhost:6379"
	}
	if config.Cache.TTLSeconds == 0 {
		config.Cache.TTLSeconds = 600
	}

	if config.Tagging.MaxCandidates == 0 {
		config.Tagging.MaxCandidates = 5
	}
	if config.Tagging.DedupThreshold == 0 {
		config.Tagging.DedupThreshold = 0.5
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.Queue.URL = natsURL
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		config.Cache.Addr = redisAddr
	}
	if endpoint := os.Getenv("BLOB_ENDPOINT"); endpoint != "" {
		config.Blob.Endpoint = endpoint
	}
	if accessKey := os.Getenv("BLOB_ACCESS_KEY"); accessKey != "" {
		config.Blob.AccessKey = accessKey
	}
	if secretKey := os.Getenv("BLOB_SECRET_KEY"); secretKey != "" {
		config.Blob.SecretKey = secretKey
	}
	if bucket := os.Getenv("BLOB_BUCKET"); bucket != "" {
		config.Blob.Bucket = bucket
	}
}
