package config

import (
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/cycredit-chat/pkg/config"
	"github.com/weiawesome/cycredit-chat/pkg/database"
	"github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	NATS      NATSConfig      `mapstructure:"nats"`
	History   HistoryConfig   `mapstructure:"history"`
	ID        IDConfig        `mapstructure:"id"`
	Log       LogConfig       `mapstructure:"log"`

	v *viper.Viper
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// StoreConfig selects the chat message store: gorm, cassandra or mongo.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type CassandraConfig struct {
	Hosts          []string      `mapstructure:"hosts"`
	Keyspace       string        `mapstructure:"keyspace"`
	Consistency    string        `mapstructure:"consistency"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
	NumConns       int           `mapstructure:"num_conns"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the history read-through cache (driver: none or redis).
type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RelayConfig configures cross-instance fan-out (driver: none, redis, kafka or nats).
type RelayConfig struct {
	Driver     string `mapstructure:"driver"`
	InstanceID string `mapstructure:"instance_id"`
}

type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	GroupID    string `mapstructure:"group_id"`
	Partitions int    `mapstructure:"partitions"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// IDConfig configures message and connection id generation.
type IDConfig struct {
	ConnectionID string `mapstructure:"connection_id"` // uuid, ulid, ksuid, nanoid, cuid2
	MachineID    int64  `mapstructure:"machine_id"`
	EpochMs      int64  `mapstructure:"epoch_ms"`
	NanoIDSize   int    `mapstructure:"nanoid_size"`
	Cuid2Length  int    `mapstructure:"cuid2_length"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads ./config/config.yaml (optional) plus environment overrides.
func Load() (*Config, error) {
	return LoadFrom(pkgconfig.GetEnv("CONFIG_PATH", "./config"), "config")
}

// LoadFrom reads configName.yaml from configPath plus environment overrides.
func LoadFrom(configPath, configName string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, configName)
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":        "PORT",
		"store.driver":       "STORE_DRIVER",
		"database.driver":    "DB_DRIVER",
		"database.host":      "DB_HOST",
		"database.port":      "DB_PORT",
		"database.user":      "DB_USER",
		"database.password":  "DB_PASSWORD",
		"database.dbname":    "DB_NAME",
		"database.file_path": "DB_FILE_PATH",
		"cassandra.keyspace": "CASSANDRA_KEYSPACE",
		"mongo.uri":          "MONGO_URI",
		"cache.driver":       "CACHE_DRIVER",
		"redis.address":      "REDIS_ADDRESS",
		"redis.password":     "REDIS_PASSWORD",
		"relay.driver":       "RELAY_DRIVER",
		"relay.instance_id":  "INSTANCE_ID",
		"kafka.brokers":      "KAFKA_BROKERS",
		"nats.url":           "NATS_URL",
		"log.level":          "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.v = v
	return cfg, nil
}

// Watch calls onChange with the re-read configuration whenever the config
// file changes. It reports false when no file was loaded.
func (c *Config) Watch(onChange func(*Config)) bool {
	if c.v == nil {
		return false
	}
	return pkgconfig.Watch(c.v, func(e fsnotify.Event) {
		next, err := decode(c.v)
		if err != nil {
			l := log.L()
			l.Warn().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		next.v = c.v
		onChange(next)
	})
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Cassandra.ConnectTimeout = parseDuration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = parseDuration(v, "cassandra.timeout", 5*time.Second)
	cfg.Mongo.Timeout = parseDuration(v, "mongo.timeout", 10*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 30*time.Second)
	cfg.NATS.ReconnectWait = parseDuration(v, "nats.reconnect_wait", 2*time.Second)

	// CASSANDRA_HOSTS: comma-separated, e.g. "cassandra:9042" or "host1:9042,host2:9042"
	if hosts := os.Getenv("CASSANDRA_HOSTS"); hosts != "" {
		cfg.Cassandra.Hosts = splitList(hosts)
	}
	if origins := os.Getenv("WS_ALLOWED_ORIGINS"); origins != "" {
		cfg.WebSocket.AllowedOrigins = splitList(origins)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})

	v.SetDefault("store.driver", "gorm")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/chat.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "cycredit_chat")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("cassandra.num_conns", 2)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cycredit_chat")
	v.SetDefault("mongo.collection", "chat_messages")
	v.SetDefault("mongo.timeout", "10s")

	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.prefix", "chat:history")
	v.SetDefault("cache.ttl", "30s")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("relay.driver", "none")
	v.SetDefault("relay.instance_id", "")

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_id", "chat-relay")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("history.default_limit", 50)
	v.SetDefault("history.max_limit", 200)

	v.SetDefault("id.connection_id", "uuid")
	v.SetDefault("id.machine_id", 1)
	v.SetDefault("id.epoch_ms", 1704067200000) // 2024-01-01T00:00:00Z
	v.SetDefault("id.nanoid_size", 21)
	v.SetDefault("id.cuid2_length", 24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// DatabaseOptions converts the database section for pkg/database.
func (c *Config) DatabaseOptions() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		DBName:          c.Database.DBName,
		SSLMode:         c.Database.SSLMode,
		FilePath:        c.Database.FilePath,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		LogLevel:        c.Database.LogLevel,
	}
}

// PubSubOptions converts the relay sections for pkg/pubsub. The Kafka
// consumer group is suffixed with the instance id so that every instance
// receives every relayed event.
func (c *Config) PubSubOptions(instanceID string) pubsub.Config {
	return pubsub.Config{
		Driver: c.Relay.Driver,
		Redis: pubsub.RedisConfig{
			Address:      c.Redis.Address,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			PoolSize:     c.Redis.PoolSize,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: pubsub.KafkaConfig{
			Brokers:    c.Kafka.Brokers,
			GroupID:    c.Kafka.GroupID + "-" + instanceID,
			Partitions: c.Kafka.Partitions,
		},
		NATS: pubsub.NATSConfig{
			URL:           c.NATS.URL,
			User:          c.NATS.User,
			Password:      c.NATS.Password,
			Name:          "chat-server-" + instanceID,
			ReconnectWait: c.NATS.ReconnectWait,
		},
	}
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
