package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Document  DocumentConfig  `yaml:"document"`
	Index     IndexConfig     `yaml:"index"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Provider  ProviderConfig  `yaml:"provider"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Server    ServerConfig    `yaml:"server"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Log       LogConfig       `yaml:"log"`
}

type DocumentConfig struct {
	Path string `yaml:"path"`
}

type IndexConfig struct {
	Backend    string       `yaml:"backend"`
	Location   string       `yaml:"location"`
	Collection string       `yaml:"collection"`
	Metric     string       `yaml:"metric"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	UseTLS    bool   `yaml:"use_tls"`
	PoolSize  int    `yaml:"pool_size"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type SplitterConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	K int `yaml:"k"`
}

type ProviderConfig struct {
	Name                 string        `yaml:"name"`
	APIKeyEnv            string        `yaml:"api_key_env"`
	BaseURL              string        `yaml:"base_url"`
	EmbeddingModel       string        `yaml:"embedding_model"`
	GenerationModel      string        `yaml:"generation_model"`
	EmbeddingDimension   int           `yaml:"embedding_dimension"`
	Temperature          float32       `yaml:"temperature"`
	EmbeddingBatchSize   int           `yaml:"embedding_batch_size"`
	EmbeddingConcurrency int           `yaml:"embedding_concurrency"`
	RequestsPerSecond    float64       `yaml:"requests_per_second"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRetries           int           `yaml:"max_retries"`
}

type PromptConfig struct {
	Template string `yaml:"template"`
	Refusal  string `yaml:"refusal"`
}

type ServerConfig struct {
	ListenAddr         string  `yaml:"listen_addr"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

type SessionsConfig struct {
	Store        string        `yaml:"store"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisDB      int           `yaml:"redis_db"`
	TTL          time.Duration `yaml:"ttl"`
	HistoryLimit int           `yaml:"history_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := base()
	cfg.applyDerivedDefaults()
	return cfg
}

func base() *Config {
	return &Config{
		Document: DocumentConfig{Path: DefaultDocumentPath},
		Index: IndexConfig{
			Backend:    DefaultIndexBackend,
			Location:   DefaultIndexLocation,
			Collection: DefaultCollection,
			Metric:     DefaultMetric,
			Qdrant: QdrantConfig{
				Host:      QdrantHost,
				Port:      QdrantGrpcPort,
				UseTLS:    QdrantUseTLS,
				PoolSize:  QdrantPoolSize,
				APIKeyEnv: QdrantAPIKeyEnv,
			},
		},
		Splitter: SplitterConfig{
			Strategy:     DefaultSplitStrategy,
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{K: DefaultTopK},
		Provider: ProviderConfig{
			Name:                 DefaultProvider,
			Temperature:          ModelTemperature,
			EmbeddingBatchSize:   EmbeddingBatchSize,
			EmbeddingConcurrency: EmbeddingConcurrency,
			RequestsPerSecond:    EmbeddingRequestsPerSecond,
			Timeout:              ProviderTimeout,
			MaxRetries:           ProviderMaxRetries,
		},
		Prompt: PromptConfig{Refusal: RefusalMessage},
		Server: ServerConfig{
			ListenAddr:         ServerListenAddr,
			RateLimitPerSecond: RATE_LIMIT_PER_SECOND,
			RateLimitBurst:     BURST_RATE_LIMIT_PER_SECOND,
		},
		Sessions: SessionsConfig{
			Store:        SessionStoreMemory,
			RedisAddr:    RedisAddr,
			RedisDB:      RedisSessionStore,
			TTL:          RedisSessionStoreTTL,
			HistoryLimit: SessionHistoryLimit,
		},
		Log: LogConfig{Level: LogLevel, Format: LogFormat},
	}
}

// derived defaults depend on the provider and backend picked by the file or env
func (c *Config) applyDerivedDefaults() {
	p := &c.Provider
	switch strings.ToLower(p.Name) {
	case ProviderOpenAI:
		setIfEmpty(&p.APIKeyEnv, OpenAIAPIKeyEnv)
		setIfEmpty(&p.EmbeddingModel, OpenAIEmbeddingModel)
		setIfEmpty(&p.GenerationModel, OpenAIModelName)
		if p.EmbeddingDimension == 0 {
			p.EmbeddingDimension = OpenAIEmbeddingDimensionality
		}
	default:
		setIfEmpty(&p.APIKeyEnv, GoogleAPIKeyEnv)
		setIfEmpty(&p.EmbeddingModel, GoogleEmbeddingModel)
		setIfEmpty(&p.GenerationModel, GeminiModelName)
		if p.EmbeddingDimension == 0 {
			p.EmbeddingDimension = EmbeddingOutputDimensionality
		}
	}
	if c.Index.Backend == BackendQdrant && c.Index.Location == DefaultIndexLocation {
		c.Index.Location = c.QdrantAddr()
	}
}

func setIfEmpty(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// Load reads .env, the optional YAML file at path and the env overrides, in that order.
// The result is validated; no other I/O happens here.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ragErrors.Config("load .env", err)
	}

	cfg := base()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, ragErrors.Config("open config", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return ragErrors.Config("parse config", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envDocument); v != "" {
		c.Document.Path = v
	}
	if v := os.Getenv(envIndexBackend); v != "" {
		c.Index.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(envIndexLocation); v != "" {
		c.Index.Location = v
	}
	if v := os.Getenv(envCollection); v != "" {
		c.Index.Collection = v
	}
	if v := os.Getenv(envQdrantHost); v != "" {
		c.Index.Qdrant.Host = v
	}
	if v := os.Getenv(envQdrantPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return ragErrors.Config("env "+envQdrantPort, err)
		}
		c.Index.Qdrant.Port = port
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		c.Sessions.RedisAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks every option without touching the network or the filesystem.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Document.Path) == "" {
		add("document.path is required")
	}

	switch c.Index.Backend {
	case BackendLocal, BackendQdrant, BackendPgvector:
	default:
		add("index.backend %q is not one of local, qdrant, pgvector", c.Index.Backend)
	}
	if strings.TrimSpace(c.Index.Location) == "" {
		add("index.location is required")
	}
	if strings.TrimSpace(c.Index.Collection) == "" {
		add("index.collection is required")
	}
	switch c.Index.Metric {
	case MetricCosine, MetricDot, MetricEuclid:
	default:
		add("index.metric %q is not one of cosine, dot, euclid", c.Index.Metric)
	}

	switch c.Splitter.Strategy {
	case StrategyFixed, StrategyRecursive:
	default:
		add("splitter.strategy %q is not one of fixed, recursive", c.Splitter.Strategy)
	}
	if c.Splitter.ChunkSize <= 0 {
		add("splitter.chunk_size must be positive, got %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 {
		add("splitter.chunk_overlap must not be negative, got %d", c.Splitter.ChunkOverlap)
	}
	if c.Splitter.ChunkSize > 0 && c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		add("splitter.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Splitter.ChunkOverlap, c.Splitter.ChunkSize)
	}

	if c.Retrieval.K <= 0 {
		add("retrieval.k must be at least 1, got %d", c.Retrieval.K)
	}

	switch c.Provider.Name {
	case ProviderGoogle, ProviderOpenAI:
	default:
		add("provider.name %q is not one of google, openai", c.Provider.Name)
	}
	if c.Provider.EmbeddingDimension <= 0 {
		add("provider.embedding_dimension must be positive, got %d", c.Provider.EmbeddingDimension)
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		add("provider.temperature must be within [0, 2], got %v", c.Provider.Temperature)
	}
	if c.Provider.EmbeddingBatchSize <= 0 {
		add("provider.embedding_batch_size must be positive, got %d", c.Provider.EmbeddingBatchSize)
	}
	if c.Provider.EmbeddingConcurrency <= 0 {
		add("provider.embedding_concurrency must be positive, got %d", c.Provider.EmbeddingConcurrency)
	}
	if c.Provider.Timeout < 0 {
		add("provider.timeout must not be negative")
	}

	if c.Prompt.Template != "" {
		if err := checkTemplate(c.Prompt.Template); err != nil {
			add("prompt.template: %v", err)
		}
	}
	if strings.TrimSpace(c.Prompt.Refusal) == "" {
		add("prompt.refusal is required")
	}

	switch c.Sessions.Store {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		add("sessions.store %q is not one of memory, redis", c.Sessions.Store)
	}
	if c.Sessions.HistoryLimit < 0 {
		add("sessions.history_limit must not be negative")
	}
	if c.Server.RateLimitPerSecond <= 0 || c.Server.RateLimitBurst <= 0 {
		add("server rate limit and burst must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return ragErrors.Config("validate", errors.Join(problems...))
}

func checkTemplate(text string) error {
	for _, field := range []string{"{{.Context}}", "{{.Question}}"} {
		if !strings.Contains(text, field) {
			return fmt.Errorf("must reference %s", field)
		}
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return err
	}
	return tmpl.Execute(io.Discard, struct{ Context, Question, Refusal string }{})
}

// APIKey reads the provider credential from the environment.
func (c *Config) APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.Provider.APIKeyEnv))
	if key == "" {
		return "", ragErrors.Config("credentials", fmt.Errorf("%w: set %s", ragErrors.ErrMissingCredential, c.Provider.APIKeyEnv))
	}
	return key, nil
}

func (c *Config) QdrantAddr() string {
	return c.Index.Qdrant.Host + ":" + strconv.Itoa(c.Index.Qdrant.Port)
}

// String renders the effective configuration as YAML.
func (c *Config) String() string {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err.Error()
	}
	return buf.String()
}
