package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/dumpflow"
	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/internal/database"
	"github.com/BaSui01/dumpflow/plugin"
	"github.com/BaSui01/dumpflow/store"
	"github.com/BaSui01/dumpflow/types"
)

// =============================================================================
// 🚀 dispatch 命令
// =============================================================================

func runDispatch(args []string, out io.Writer) error {
	var common commonFlags
	fs := newFlagSet("dispatch", &common)
	output := outputFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("dispatch requires exactly one artifact id")
	}

	cfg, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	p, err := dumpflow.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	report, dispatchErr := p.Dispatch(ctx, fs.Arg(0))
	var drainErr error
	if dispatchErr == nil && cfg.Worker.Mode != config.ModeRedis {
		// local 模式下任务在本进程内运行，等待全部终态后才能退出
		logger.Info("waiting for local tasks",
			zap.String("artifact_id", report.ArtifactID),
			zap.Int("tasks", len(report.Submitted)))
		drainErr = p.Drain(ctx, report.ArtifactID)
	}
	closePipeline(p, cfg, logger)
	if dispatchErr != nil {
		return dispatchErr
	}
	if drainErr != nil {
		return fmt.Errorf("dispatch of %s interrupted: %w", report.ArtifactID, drainErr)
	}

	return writeOutput(out, *output, report, func(w io.Writer) {
		fmt.Fprintf(w, "artifact %s dispatched from %s\n", report.ArtifactID, report.Path)
		fmt.Fprintf(w, "  submitted: %d\n  skipped:   %d\n  failed:    %d\n",
			len(report.Submitted), len(report.Skipped), len(report.Failed))
		if cfg.Worker.Mode == config.ModeRedis {
			fmt.Fprintf(w, "tasks queued on %s; poll with: dumpflow status %s\n", cfg.Redis.QueueKey, report.ArtifactID)
		}
	})
}

// =============================================================================
// 📊 status 命令
// =============================================================================

type statusView struct {
	Summary store.Summary      `json:"summary" yaml:"summary"`
	Results []types.TaskResult `json:"results" yaml:"results"`
}

func runStatus(args []string, out io.Writer) error {
	var common commonFlags
	fs := newFlagSet("status", &common)
	output := outputFlag(fs)
	wait := fs.Duration("wait", 0, "poll until every task is final or the duration elapses")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("status requires exactly one artifact id")
	}
	artifactID := fs.Arg(0)

	return withDatabase(common.configPath, func(ctx context.Context, db *database.PoolManager, logger *zap.Logger) error {
		results := store.NewResults(db, logger)

		summary, err := pollSummary(ctx, results, artifactID, *wait)
		if err != nil {
			return err
		}
		rows, err := results.ListByArtifact(ctx, artifactID)
		if err != nil {
			return err
		}

		view := statusView{Summary: summary, Results: rows}
		return writeOutput(out, *output, view, func(w io.Writer) {
			fmt.Fprintf(w, "artifact %s: %d tasks, done=%t\n", artifactID, summary.Total, summary.Done())
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLUGIN\tSTATUS\tUPDATED\tDESCRIPTION")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					r.PluginName, r.Status, r.UpdatedAt.Format(time.RFC3339), firstLine(r.Description))
			}
			_ = tw.Flush()
		})
	})
}

// pollSummary 在 wait > 0 时轮询直到全部终态或超时
func pollSummary(ctx context.Context, results *store.Results, artifactID string, wait time.Duration) (store.Summary, error) {
	deadline := time.Now().Add(wait)
	for {
		summary, err := results.Summary(ctx, artifactID)
		if err != nil {
			return summary, err
		}
		if wait <= 0 || summary.Done() || time.Now().After(deadline) {
			return summary, nil
		}
		select {
		case <-ctx.Done():
			return summary, nil
		case <-time.After(time.Second):
		}
	}
}

// =============================================================================
// 🔌 plugins 命令
// =============================================================================

func runPlugins(args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: dumpflow plugins <list|sync|enable|disable> [name] [--config path]")
		return errUsage
	}
	sub, rest := args[0], args[1:]

	var common commonFlags
	fs := newFlagSet("plugins "+sub, &common)
	output := outputFlag(fs)
	osFilter := fs.String("os", "", "only list plugins for this operating system")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	return withDatabase(common.configPath, func(ctx context.Context, db *database.PoolManager, _ *zap.Logger) error {
		catalog := store.NewCatalog(db)

		switch sub {
		case "list":
			var (
				plugins []types.PluginDescriptor
				err     error
			)
			if *osFilter != "" {
				os, perr := types.ParseOperatingSystem(*osFilter)
				if perr != nil {
					return perr
				}
				plugins, err = catalog.ListByOS(ctx, os)
			} else {
				plugins, err = catalog.List(ctx)
			}
			if err != nil {
				return err
			}
			return writeOutput(out, *output, plugins, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tOS\tDISABLED")
				for _, p := range plugins {
					fmt.Fprintf(tw, "%s\t%s\t%t\n", p.Name, p.OperatingSystem, p.Disabled)
				}
				_ = tw.Flush()
			})

		case "sync":
			n, err := catalog.Register(ctx, plugin.DefaultRegistry().Names())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "registered %d plugins\n", n)
			return nil

		case "enable", "disable":
			if fs.NArg() != 1 {
				return fmt.Errorf("plugins %s requires exactly one plugin name", sub)
			}
			if err := catalog.SetDisabled(ctx, fs.Arg(0), sub == "disable"); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %sd\n", fs.Arg(0), sub)
			return nil

		default:
			return fmt.Errorf("unknown plugins subcommand %q", sub)
		}
	})
}

// =============================================================================
// 💾 artifact 命令
// =============================================================================

func runArtifact(args []string, out io.Writer) error {
	if len(args) < 1 || args[0] != "add" {
		fmt.Fprintln(out, "Usage: dumpflow artifact add --id <id> --path <file> --os <linux|windows|mac|other> --index <name>")
		return errUsage
	}

	var common commonFlags
	fs := newFlagSet("artifact add", &common)
	id := fs.String("id", "", "artifact id")
	path := fs.String("path", "", "stored path of the uploaded image or archive")
	osName := fs.String("os", "", "operating system of the image")
	index := fs.String("index", "", "search index prefix")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	art, err := buildArtifact(*id, *path, *osName, *index)
	if err != nil {
		return err
	}

	return withDatabase(common.configPath, func(ctx context.Context, db *database.PoolManager, _ *zap.Logger) error {
		if err := store.NewArtifacts(db).Save(ctx, art); err != nil {
			return err
		}
		fmt.Fprintf(out, "artifact %s registered\n", art.ID)
		return nil
	})
}

func buildArtifact(id, path, osName, index string) (types.Artifact, error) {
	if id == "" || path == "" {
		return types.Artifact{}, fmt.Errorf("--id and --path are required")
	}
	os, err := types.ParseOperatingSystem(osName)
	if err != nil {
		return types.Artifact{}, err
	}
	if index == "" {
		index = id
	}
	return types.Artifact{ID: id, Path: path, OperatingSystem: os, Index: index}, nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// withDatabase 只打开数据库，不连接 Redis 与 Elasticsearch
func withDatabase(configPath string, fn func(context.Context, *database.PoolManager, *zap.Logger) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signalContext()
	defer stop()
	return fn(ctx, db, logger)
}

func outputFlag(fs *pflag.FlagSet) *string {
	return fs.StringP("output", "o", "text", "output format: text, json or yaml")
}

// writeOutput 按格式输出；text 由调用方渲染
func writeOutput(out io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case "", "text":
		text(out)
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
