package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	// LogFormat is "console" for humans or "json" for log shippers.
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// MaxMessageBytes is the largest request frame handled; larger frames get a
	// 400 reply. The transport cap is a multiple of it.
	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxTextLength      int   `mapstructure:"max_text_length" yaml:"max_text_length"`
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// BusBackend is "memory" for a single instance, or "redis" or "nats" to fan
	// out across instances.
	BusBackend    string `mapstructure:"bus_backend" yaml:"bus_backend"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisChannel  string `mapstructure:"redis_channel" yaml:"redis_channel"`
	NATSURL       string `mapstructure:"nats_url" yaml:"nats_url"`
	NATSSubject   string `mapstructure:"nats_subject" yaml:"nats_subject"`

	UploadDir          string        `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes     int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	AttachmentLifetime time.Duration `mapstructure:"attachment_lifetime" yaml:"attachment_lifetime"`
	JanitorInterval    time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// Bus backends.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
	BusNATS   = "nats"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "brandchat.db",
		JWTSecret:          "change-me",
		JWTIssuer:          "brandchat",
		JWTAudience:        "brandchat",
		JWTTTL:             24 * time.Hour,
		MaxMessageBytes:    64 << 10,
		MaxTextLength:      4000,
		RateLimitPerMinute: 120,
		BusBackend:         BusMemory,
		RedisAddr:          "localhost:6379",
		RedisChannel:       "brandchat:events",
		NATSURL:            "nats://localhost:4222",
		NATSSubject:        "brandchat.events",
		UploadDir:          "uploads",
		MaxUploadBytes:     10 << 20,
		AttachmentLifetime: 24 * time.Hour,
		JanitorInterval:    time.Hour,
	}
}
