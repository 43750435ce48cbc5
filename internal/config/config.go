package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	NodeID   int64  `mapstructure:"node_id"` // 事件 ID 生成器节点号
	LogLevel string `mapstructure:"log_level"`
	OpsAddr  string `mapstructure:"ops_addr"` // 健康检查与指标监听地址
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type ChatConfig struct {
	ConversationsPageSize int           `mapstructure:"conversations_page_size"`
	EventsPageSize        int           `mapstructure:"events_page_size"`
	MaxTextLength         int           `mapstructure:"max_text_length"`
	MessageTTL            time.Duration `mapstructure:"message_ttl"`
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	PushWorkers           int           `mapstructure:"push_workers"`
	PushQueueSize         int           `mapstructure:"push_queue_size"`
	SubscriberBuffer      int           `mapstructure:"subscriber_buffer"` // 每个在线订阅者的事件缓冲
	HandlerWorkers        int           `mapstructure:"handler_workers"`
	HandlerBuffer         int           `mapstructure:"handler_buffer"`
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Chat.applyDefaults()
	return &cfg, nil
}

func (c *ChatConfig) applyDefaults() {
	if c.ConversationsPageSize <= 0 {
		c.ConversationsPageSize = 20
	}
	if c.EventsPageSize <= 0 {
		c.EventsPageSize = 25
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = 4000
	}
	if c.MessageTTL <= 0 {
		c.MessageTTL = 90 * 24 * time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.PushWorkers <= 0 {
		c.PushWorkers = 8
	}
	if c.PushQueueSize <= 0 {
		c.PushQueueSize = 4096
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 64
	}
	if c.HandlerWorkers <= 0 {
		c.HandlerWorkers = 100
	}
	if c.HandlerBuffer <= 0 {
		c.HandlerBuffer = 10000
	}
}
