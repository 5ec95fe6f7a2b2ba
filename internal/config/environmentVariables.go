package config

import (
	"time"
)

const (
	TRACE_ID_KEY                = "traceId"
	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//document + index
	DefaultDocumentPath  = "notes.pdf"
	DefaultIndexBackend  = BackendLocal
	DefaultIndexLocation = "index_db"
	DefaultCollection    = "docqa-notes"
	DefaultMetric        = MetricCosine

	//splitter
	DefaultSplitStrategy = StrategyFixed
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200

	//retrieval
	DefaultTopK = 3

	//providers
	DefaultProvider      = ProviderGoogle
	GoogleAPIKeyEnv      = "GOOGLE_API_KEY"
	OpenAIAPIKeyEnv      = "OPENAI_API_KEY"
	GoogleEmbeddingModel = "gemini-embedding-001"
	GeminiModelName      = "gemini-2.5-flash"
	OpenAIEmbeddingModel = "text-embedding-3-small"
	OpenAIModelName      = "gpt-4o-mini"

	EmbeddingOutputDimensionality         = 768
	OpenAIEmbeddingDimensionality         = 1536
	ModelTemperature              float32 = 0.6
	EmbeddingBatchSize                    = 100
	EmbeddingConcurrency                  = 4
	EmbeddingRequestsPerSecond            = 10
	ProviderTimeout                       = 60 * time.Second
	ProviderMaxRetries                    = 3

	RefusalMessage = "I'm sorry, this information is not in my notes."

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 90 * time.Second //generation is synchronous
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//vectorDB
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "localhost"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false            //set for https
	QdrantPoolSize          = 1                //2-5 is preferred for prod according to documentation
	QdrantKeepAliveTimeout  = 30 * time.Second //5 * time.Minute for prod maybe- fine tune for performance
	QdrantAPIKeyEnv         = "QDRANT_API_KEY"
	VectorUpsertBatchSize   = 100
	LocalLockTimeout        = 2 * time.Minute

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisSessionStore    = 1
	RedisSessionStoreTTL = 24 * time.Hour

	SessionStoreMemory  = "memory"
	SessionStoreRedis   = "redis"
	SessionHistoryLimit = 50

	LogLevel  = "info"
	LogFormat = "text"
)

// recognised option values
const (
	BackendLocal    = "local"
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"

	MetricCosine = "cosine"
	MetricDot    = "dot"
	MetricEuclid = "euclid"

	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"

	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// env overrides
const (
	envDocument      = "DOCQA_DOCUMENT"
	envIndexBackend  = "DOCQA_INDEX_BACKEND"
	envIndexLocation = "DOCQA_INDEX_LOCATION"
	envCollection    = "DOCQA_COLLECTION"
	envQdrantHost    = "QDRANT_HOST"
	envQdrantPort    = "QDRANT_PORT"
	envRedisAddr     = "REDIS_ADDR"
	envLogLevel      = "DOCQA_LOG_LEVEL"
)
