// =============================================================================
// 📦 dumpflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("dumpflow.yaml").
//	    WithEnvPrefix("DUMPFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 dumpflow 的完整配置结构
type Config struct {
	// Server 指标与健康检查服务
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Worker 任务执行配置
	Worker WorkerConfig `yaml:"worker" env:"WORKER"`

	// Redis 任务队列配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 任务结果库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Elasticsearch 搜索引擎配置
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" env:"ELASTICSEARCH"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 指标服务配置
type ServerConfig struct {
	// 监听地址，空字符串表示不启动
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// WorkerConfig 任务执行配置
type WorkerConfig struct {
	// 提交模式: local, redis
	Mode string `yaml:"mode" env:"MODE"`
	// 并发执行的任务数
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 本地排队上限
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// 空闲 worker 回收时间
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 单个任务的执行期限，0 表示不限制
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	// 插件配置树的根路径
	BaseConfigPath string `yaml:"base_config_path" env:"BASE_CONFIG_PATH"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 任务队列键名
	QueueKey string `yaml:"queue_key" env:"QUEUE_KEY"`
	// BRPOP 阻塞时间
	BlockTimeout time.Duration `yaml:"block_timeout" env:"BLOCK_TIMEOUT"`
	// 是否使用 TLS 连接
	TLS bool `yaml:"tls" env:"TLS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 下为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// ElasticsearchConfig 搜索引擎配置
type ElasticsearchConfig struct {
	// 是否启用；关闭时文档写入进程内索引
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 节点地址
	Addresses []string `yaml:"addresses" env:"ADDRESSES"`
	// 用户名
	Username string `yaml:"username" env:"USERNAME"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 请求重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 批量写入的并发数
	BulkWorkers int `yaml:"bulk_workers" env:"BULK_WORKERS"`
	// 单批最大字节数
	FlushBytes int `yaml:"flush_bytes" env:"FLUSH_BYTES"`
	// 定时刷新间隔
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	// 自签 CA 证书（PEM），为空时使用系统根证书
	CACertFile string `yaml:"ca_cert_file" env:"CA_CERT_FILE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DUMPFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 按 env tag 递归覆盖字段，键名为 PREFIX_SECTION_FIELD
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}

	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Worker 提交模式
const (
	ModeLocal = "local"
	ModeRedis = "redis"
)

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch c.Worker.Mode {
	case ModeLocal, ModeRedis:
	default:
		errs = append(errs, fmt.Sprintf("worker.mode must be %q or %q", ModeLocal, ModeRedis))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, "worker.concurrency must be positive")
	}
	if c.Worker.QueueSize < 0 {
		errs = append(errs, "worker.queue_size must not be negative")
	}
	if c.Worker.TaskTimeout < 0 {
		errs = append(errs, "worker.task_timeout must not be negative")
	}
	if c.Worker.Mode == ModeRedis && c.Redis.QueueKey == "" {
		errs = append(errs, "redis.queue_key is required in redis mode")
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database.driver %q", c.Database.Driver))
	}

	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		errs = append(errs, "elasticsearch.addresses is required when enabled")
	}
	if c.Elasticsearch.BulkWorkers < 0 {
		errs = append(errs, "elasticsearch.bulk_workers must not be negative")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
