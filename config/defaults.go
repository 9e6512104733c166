// =============================================================================
// 📦 dumpflow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Worker:        DefaultWorkerConfig(),
		Redis:         DefaultRedisConfig(),
		Database:      DefaultDatabaseConfig(),
		Elasticsearch: DefaultElasticsearchConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认指标服务配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MetricsAddr:     ":9091",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultWorkerConfig 返回默认 Worker 配置
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Mode:           ModeLocal,
		Concurrency:    4,
		QueueSize:      64,
		IdleTimeout:    60 * time.Second,
		TaskTimeout:    30 * time.Minute,
		BaseConfigPath: "plugins",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		QueueKey:     "dumpflow:tasks",
		BlockTimeout: 5 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "dumpflow",
		Password:        "",
		Name:            "dumpflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultElasticsearchConfig 返回默认搜索引擎配置
func DefaultElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		Enabled:       true,
		Addresses:     []string{"http://localhost:9200"},
		MaxRetries:    3,
		BulkWorkers:   2,
		FlushBytes:    5 << 20,
		FlushInterval: 30 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "dumpflow",
		SampleRate:   0.1,
	}
}
