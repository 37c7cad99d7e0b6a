package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Combat   CombatConfig   `mapstructure:"combat"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs restricts admin endpoints; empty allows all (dev only).
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// CombatConfig holds the engine tunables. Defaults mirror the table rules.
type CombatConfig struct {
	// PendingAttackTTL is how long an attack waits for a defense before it
	// auto-resolves as full, undefended damage.
	PendingAttackTTL time.Duration `mapstructure:"pending_attack_ttl"`
	// PromptTimeout bounds multi-step command input waits.
	PromptTimeout time.Duration `mapstructure:"prompt_timeout"`
	// SweepInterval drives the operational expiry sweep ticker. Zero disables
	// the ticker; expiry is still enforced lazily at read time.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Zenkai growth per turn, as a percentage of base PL.
	ZenkaiGrowthPercent float64 `mapstructure:"zenkai_growth_percent"`
	// Zenkai growth while at or below 20% health.
	ZenkaiDesperationPercent float64 `mapstructure:"zenkai_desperation_percent"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins restricts WebSocket origins; empty allows all (dev only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/sagabrawl.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("combat.pending_attack_ttl", "5m")
	v.SetDefault("combat.prompt_timeout", "30s")
	v.SetDefault("combat.sweep_interval", "1m")
	v.SetDefault("combat.zenkai_growth_percent", 5)
	v.SetDefault("combat.zenkai_desperation_percent", 10)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
