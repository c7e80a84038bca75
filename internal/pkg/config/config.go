// internal/pkg/config/config.go
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config 汇集了一个服务进程需要的全部配置。
// 优先级：环境变量 > yaml 配置文件 > 默认值。
type Config struct {
	Service ServiceConfig `yaml:"service"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Redis   RedisConfig   `yaml:"redis"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type ServiceConfig struct {
	Name           string `yaml:"name"`
	Port           int    `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN 用官方驱动的 Config 拼接连接串，避免手写格式错误。
func (m MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = m.Host + ":" + m.Port
	cfg.User = m.User
	cfg.Passwd = m.Password
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	PromoTopic     string        `yaml:"promo_topic"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

type RedisConfig struct {
	Addrs    string        `yaml:"addrs"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	TickTimeout  time.Duration `yaml:"tick_timeout"`
	// FireAndForget 为 true 时，调度器产生的事件走一次性发送，失败只记日志。
	FireAndForget bool `yaml:"fire_and_forget"`
}

type ZookeeperConfig struct {
	// Addrs 为空时不启用分布式锁，多副本部署时靠数据库版本号兜底。
	Addrs    []string `yaml:"addrs"`
	LockPath string   `yaml:"lock_path"`
}

type NacosConfig struct {
	// ServerAddrs 为空时跳过服务注册。
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// Load 读取 yaml 配置文件并应用环境变量覆盖。path 为空时只用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:           "promo-service",
			Port:           8080,
			LogLevel:       "info",
			JaegerEndpoint: "http://localhost:14268/api/traces",
		},
		MySQL: MySQLConfig{
			Host: "localhost", Port: "3306",
			User: "root", Password: "root", Database: "promo_db",
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			PromoTopic:     "promo-topic",
			PublishTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addrs:    "localhost:6379",
			CacheTTL: 5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Interval:     60 * time.Second,
			InitialDelay: 10 * time.Second,
			TickTimeout:  45 * time.Second,
		},
		Zookeeper: ZookeeperConfig{
			LockPath: "promo-scheduler",
		},
		Nacos: NacosConfig{
			Group: "DEFAULT_GROUP",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Service.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", cfg.Service.JaegerEndpoint)
	cfg.Service.LogLevel = getEnv("LOG_LEVEL", cfg.Service.LogLevel)

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	cfg.Kafka.PromoTopic = getEnv("KAFKA_PROMO_TOPIC", cfg.Kafka.PromoTopic)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnv("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.MySQL.Database)

	cfg.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Redis.Addrs)

	if v, ok := os.LookupEnv("ZK_ADDRS"); ok {
		cfg.Zookeeper.Addrs = strings.Split(v, ",")
	}

	cfg.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Nacos.ServerAddrs)
	cfg.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Nacos.Namespace)
	cfg.Nacos.Group = getEnv("NACOS_GROUP", cfg.Nacos.Group)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
