package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
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

type SecurityConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTTTLH   time.Duration `mapstructure:"jwt_ttl_h"`
	// BridgeKey is the static bearer token the game-side bridge presents.
	// It is distinct from user session auth; an empty key disables the
	// bridge endpoints.
	BridgeKey      string  `mapstructure:"bridge_key"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// BridgeConfig configures the game-side bridge process.
type BridgeConfig struct {
	LogFile      string        `mapstructure:"log_file"`
	InputFile    string        `mapstructure:"input_file"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	TailInterval time.Duration `mapstructure:"tail_interval"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

type GameConfig struct {
	CodeTTL             time.Duration `mapstructure:"code_ttl"`
	PlaceholderCharName string        `mapstructure:"placeholder_char_name"`
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
	v.SetDefault("database.sqlite_path", "./data/hub.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("bridge.log_file", "./profiles/pzserver/Lua/POTD_Log.txt")
	v.SetDefault("bridge.input_file", "./profiles/pzserver/Lua/POTD_Input.txt")
	v.SetDefault("bridge.api_base_url", "http://127.0.0.1:8080")
	v.SetDefault("bridge.poll_interval", "10s")
	v.SetDefault("bridge.tail_interval", "1s")
	v.SetDefault("bridge.http_timeout", "10s")
	v.SetDefault("game.code_ttl", "10m")
	v.SetDefault("game.placeholder_char_name", "Survivor Verified")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
