package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Interests InterestsConfig `mapstructure:"interests"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Signals   SignalsConfig   `mapstructure:"signals"`
	Ensemble  EnsembleConfig  `mapstructure:"ensemble"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	ColdStart ColdStartConfig `mapstructure:"cold_start"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		ProcessedSignals string `mapstructure:"processed_signals"`
	} `mapstructure:"topics"`
}

type InterestsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration   `mapstructure:"token_ttl"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SignalsConfig tunes the ingestion pipeline and aggregator.
type SignalsConfig struct {
	QueueCapacity        int           `mapstructure:"queue_capacity"`
	HighPriorityCapacity int           `mapstructure:"high_priority_capacity"`
	Workers              int           `mapstructure:"workers"`
	RingBufferCapacity   int           `mapstructure:"ring_buffer_capacity"`
	PollTimeout          time.Duration `mapstructure:"poll_timeout"`
	AggregationInterval  time.Duration `mapstructure:"aggregation_interval"`
	MonitoringInterval   time.Duration `mapstructure:"monitoring_interval"`
	EmbeddingDim         int           `mapstructure:"embedding_dim"`
	EmbeddingAlpha       float64       `mapstructure:"embedding_alpha"`
	EngagementHalfLife   time.Duration `mapstructure:"engagement_half_life"`
	EngagementCeiling    float64       `mapstructure:"engagement_ceiling"`
	SignalTTL            time.Duration `mapstructure:"signal_ttl"`
	AggregateTTL         time.Duration `mapstructure:"aggregate_ttl"`
}

// EnsembleConfig tunes the collaborative-filtering ensemble.
type EnsembleConfig struct {
	Factors          int           `mapstructure:"factors"`
	NMFIterations    int           `mapstructure:"nmf_iterations"`
	ALSIterations    int           `mapstructure:"als_iterations"`
	BPRIterations    int           `mapstructure:"bpr_iterations"`
	LearningRate     float64       `mapstructure:"learning_rate"`
	Regularization   float64       `mapstructure:"regularization"`
	Neighbors        int           `mapstructure:"neighbors"`
	RecencyHalfLife  time.Duration `mapstructure:"recency_half_life"`
	RetrainInterval  time.Duration `mapstructure:"retrain_interval"`
	MaxDurationBoost float64       `mapstructure:"max_duration_boost"`
}

// RankingConfig holds the fusion weights and decay parameters. The five
// weights are expected to sum to 1; the orchestrator renormalizes when an
// override does not.
type RankingConfig struct {
	ContentWeight       float64       `mapstructure:"content_weight"`
	CollaborativeWeight float64       `mapstructure:"collaborative_weight"`
	RealTimeWeight      float64       `mapstructure:"real_time_weight"`
	InterestsWeight     float64       `mapstructure:"interests_weight"`
	FreshnessWeight     float64       `mapstructure:"freshness_weight"`
	RealTimeHalfLife    time.Duration `mapstructure:"real_time_half_life"`
	RealTimeCeiling     float64       `mapstructure:"real_time_ceiling"`
	FreshnessHalfLife   time.Duration `mapstructure:"freshness_half_life"`
	FreshnessFloor      float64       `mapstructure:"freshness_floor"`
}

// WeightSum returns the sum of the five fusion weights.
func (r *RankingConfig) WeightSum() float64 {
	return r.ContentWeight + r.CollaborativeWeight + r.RealTimeWeight +
		r.InterestsWeight + r.FreshnessWeight
}

type ColdStartConfig struct {
	InteractionThreshold int     `mapstructure:"interaction_threshold"`
	BoostDecayBase       float64 `mapstructure:"boost_decay_base"`
	BoostCutoffDays      int     `mapstructure:"boost_cutoff_days"`
	BoostThreshold       float64 `mapstructure:"boost_threshold"`
	MaxHashtagMatches    int     `mapstructure:"max_hashtag_matches"`
}

type RetentionConfig struct {
	InteractionMaxAge time.Duration `mapstructure:"interaction_max_age"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.rate_limit.enabled", true)
	viper.SetDefault("auth.rate_limit.limit", 1000)
	viper.SetDefault("auth.rate_limit.window", "1m")

	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	viper.SetDefault("redis.url", "localhost:6379")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.processed_signals", "signals-processed")

	viper.SetDefault("interests.base_url", "http://localhost:3000")
	viper.SetDefault("interests.timeout", "30s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Signal pipeline defaults
	viper.SetDefault("signals.queue_capacity", 10000)
	viper.SetDefault("signals.high_priority_capacity", 1000)
	viper.SetDefault("signals.workers", 8)
	viper.SetDefault("signals.ring_buffer_capacity", 1000)
	viper.SetDefault("signals.poll_timeout", "1s")
	viper.SetDefault("signals.aggregation_interval", "60s")
	viper.SetDefault("signals.monitoring_interval", "5m")
	viper.SetDefault("signals.embedding_dim", 128)
	viper.SetDefault("signals.embedding_alpha", 0.1)
	viper.SetDefault("signals.engagement_half_life", "24h")
	viper.SetDefault("signals.engagement_ceiling", 10.0)
	viper.SetDefault("signals.signal_ttl", "24h")
	viper.SetDefault("signals.aggregate_ttl", "24h")

	// Ensemble defaults
	viper.SetDefault("ensemble.factors", 100)
	viper.SetDefault("ensemble.nmf_iterations", 200)
	viper.SetDefault("ensemble.als_iterations", 50)
	viper.SetDefault("ensemble.bpr_iterations", 30)
	viper.SetDefault("ensemble.learning_rate", 0.01)
	viper.SetDefault("ensemble.regularization", 0.01)
	viper.SetDefault("ensemble.neighbors", 10)
	viper.SetDefault("ensemble.recency_half_life", "168h")
	viper.SetDefault("ensemble.retrain_interval", "15m")
	viper.SetDefault("ensemble.max_duration_boost", 3.0)

	// Fusion weight defaults
	viper.SetDefault("ranking.content_weight", 0.30)
	viper.SetDefault("ranking.collaborative_weight", 0.25)
	viper.SetDefault("ranking.real_time_weight", 0.25)
	viper.SetDefault("ranking.interests_weight", 0.10)
	viper.SetDefault("ranking.freshness_weight", 0.10)
	viper.SetDefault("ranking.real_time_half_life", "2h")
	viper.SetDefault("ranking.real_time_ceiling", 5.0)
	viper.SetDefault("ranking.freshness_half_life", "24h")
	viper.SetDefault("ranking.freshness_floor", 0.1)

	// Cold start defaults
	viper.SetDefault("cold_start.interaction_threshold", 50)
	viper.SetDefault("cold_start.boost_decay_base", 0.95)
	viper.SetDefault("cold_start.boost_cutoff_days", 30)
	viper.SetDefault("cold_start.boost_threshold", 0.1)
	viper.SetDefault("cold_start.max_hashtag_matches", 3)

	// Retention defaults
	viper.SetDefault("retention.interaction_max_age", "720h")
	viper.SetDefault("retention.cleanup_interval", "1h")
}
