// =============================================================================
// dumpflow 主入口
// =============================================================================
// 使用方法:
//
//	dumpflow worker --config dumpflow.yaml   # 消费任务队列
//	dumpflow dispatch <artifact-id>          # 派发 artifact
//	dumpflow status <artifact-id>            # 查看任务进度
//	dumpflow plugins sync                    # 把内置插件登记到目录
//	dumpflow migrate up                      # 运行数据库迁移
//	dumpflow health                          # 检查 worker 健康状态
//	dumpflow version                         # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/dumpflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errUsage 表示参数错误，已经打印过用法
var errUsage = errors.New("usage error")

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "dumpflow: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "worker":
		return runWorker(rest, out)
	case "dispatch":
		return runDispatch(rest, out)
	case "status":
		return runStatus(rest, out)
	case "plugins":
		return runPlugins(rest, out)
	case "artifact":
		return runArtifact(rest, out)
	case "migrate":
		return runMigrate(rest, out)
	case "health":
		return runHealthCheck(rest, out)
	case "version":
		printVersion(out)
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(out, "Unknown command: %s\n\n", cmd)
		printUsage(out)
		return errUsage
	}
}

// =============================================================================
// ⚙️ 公共参数
// =============================================================================

// commonFlags 所有需要配置的子命令共用
type commonFlags struct {
	configPath string
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&common.configPath, "config", "c", "", "path to config file (YAML)")
	return fs
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// signalContext 在 SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("health", pflag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:9091", "worker ops address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d: %s", resp.StatusCode, body)
	}
	fmt.Fprintln(out, "OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "dumpflow %s\n", Version)
	fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `dumpflow - memory image analysis pipeline

Usage:
  dumpflow <command> [options]

Commands:
  worker     Consume the task queue and run plugins
  dispatch   Dispatch an artifact to every applicable plugin
  status     Show task results for an artifact
  plugins    Manage the plugin catalog (list, sync, enable, disable)
  artifact   Register an uploaded memory image
  migrate    Database migration commands
  health     Check worker health
  version    Show version information
  help       Show this help message

Common options:
  -c, --config <path>   Path to configuration file (YAML)

Examples:
  dumpflow migrate up --config /etc/dumpflow/config.yaml
  dumpflow plugins sync
  dumpflow artifact add --id a1 --path /data/a1.zip --os linux --index case42
  dumpflow dispatch a1
  dumpflow status a1 --output yaml
  dumpflow worker
  dumpflow health --addr http://localhost:9091`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
