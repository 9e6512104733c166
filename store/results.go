package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/dumpflow/internal/database"
	"github.com/BaSui01/dumpflow/types"
)

// finalizeRetries 瞬时数据库错误（死锁、断连）的重试次数
const finalizeRetries = 3

// Results 任务结果仓库
type Results struct {
	pool   *database.PoolManager
	logger *zap.Logger
	now    func() time.Time
}

// NewResults 创建任务结果仓库
func NewResults(pool *database.PoolManager, logger *zap.Logger) *Results {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Results{
		pool:   pool,
		logger: logger.With(zap.String("component", "task_results")),
		now:    time.Now,
	}
}

// CreatePending 为 artifact 的每个插件创建一行 PENDING 记录。
// 该 artifact 已有任何记录时返回 ALREADY_DISPATCHED，不写入任何行。
func (r *Results) CreatePending(ctx context.Context, artifactID string, plugins []string) error {
	if len(plugins) == 0 {
		return nil
	}

	now := r.now().UTC()
	rows := make([]TaskResultModel, 0, len(plugins))
	for _, name := range plugins {
		rows = append(rows, TaskResultModel{
			ArtifactID: artifactID,
			PluginName: name,
			Status:     int(types.StatusPending),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err := r.pool.WithTransactionRetry(ctx, finalizeRetries, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&TaskResultModel{}).
			Where("artifact_id = ?", artifactID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return types.NewError(types.ErrAlreadyDispatched,
				fmt.Sprintf("artifact %s already has %d task results", artifactID, existing))
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		if types.IsCode(err, types.ErrAlreadyDispatched) {
			return err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.NewError(types.ErrAlreadyDispatched,
				fmt.Sprintf("artifact %s already dispatched", artifactID)).WithCause(err)
		}
		return fmt.Errorf("create pending results for %s: %w", artifactID, err)
	}

	r.logger.Debug("pending results created",
		zap.String("artifact_id", artifactID),
		zap.Int("count", len(rows)))
	return nil
}

// Finalize 把 PENDING 行写为终态，每行只能成功一次
func (r *Results) Finalize(ctx context.Context, artifactID, pluginName string, status types.TaskStatus, description string) error {
	if !status.IsTerminal() {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("%s is not a terminal status", status))
	}

	var affected int64
	err := r.pool.WithTransactionRetry(ctx, finalizeRetries, func(tx *gorm.DB) error {
		res := tx.Model(&TaskResultModel{}).
			Where("artifact_id = ? AND plugin_name = ? AND status = ?",
				artifactID, pluginName, int(types.StatusPending)).
			Updates(map[string]any{
				"status":      int(status),
				"description": description,
				"updated_at":  r.now().UTC(),
			})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("finalize %s/%s: %w", artifactID, pluginName, err)
	}
	if affected == 1 {
		return nil
	}

	current, err := r.Get(ctx, artifactID, pluginName)
	if err != nil {
		return err
	}
	return types.NewError(types.ErrInvalidTransition,
		fmt.Sprintf("%s/%s is already %s", artifactID, pluginName, current.Status))
}

// AbandonPending 把 artifact 仍为 PENDING 的行一次性写为终态，返回写入行数。
// 用于执行进程在任务结束前退出的场景，保证进度轮询能够结束。
func (r *Results) AbandonPending(ctx context.Context, artifactID string, status types.TaskStatus, description string) (int64, error) {
	if !status.IsTerminal() {
		return 0, types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("%s is not a terminal status", status))
	}

	var affected int64
	err := r.pool.WithTransactionRetry(ctx, finalizeRetries, func(tx *gorm.DB) error {
		res := tx.Model(&TaskResultModel{}).
			Where("artifact_id = ? AND status = ?", artifactID, int(types.StatusPending)).
			Updates(map[string]any{
				"status":      int(status),
				"description": description,
				"updated_at":  r.now().UTC(),
			})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("abandon pending results for %s: %w", artifactID, err)
	}
	if affected > 0 {
		r.logger.Warn("pending results abandoned",
			zap.String("artifact_id", artifactID),
			zap.Int64("count", affected),
			zap.Stringer("status", status))
	}
	return affected, nil
}

// Get 读取一行任务结果，不存在时返回 NOT_FOUND
func (r *Results) Get(ctx context.Context, artifactID, pluginName string) (*types.TaskResult, error) {
	var m TaskResultModel
	err := r.pool.DB().WithContext(ctx).
		Where("artifact_id = ? AND plugin_name = ?", artifactID, pluginName).
		Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrNotFound,
				fmt.Sprintf("no task result for %s/%s", artifactID, pluginName))
		}
		return nil, fmt.Errorf("get task result: %w", err)
	}
	res := m.toDomain()
	return &res, nil
}

// ListByArtifact 按插件名排序返回 artifact 的全部任务结果
func (r *Results) ListByArtifact(ctx context.Context, artifactID string) ([]types.TaskResult, error) {
	var rows []TaskResultModel
	if err := r.pool.DB().WithContext(ctx).
		Where("artifact_id = ?", artifactID).
		Order("plugin_name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list task results: %w", err)
	}
	out := make([]types.TaskResult, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// Summary 各状态的计数
type Summary struct {
	ArtifactID string                   `json:"artifact_id"`
	Counts     map[types.TaskStatus]int `json:"counts"`
	Total      int                      `json:"total"`
}

// Done 所有行都已进入终态
func (s Summary) Done() bool {
	return s.Total > 0 && s.Counts[types.StatusPending] == 0
}

// Summary 统计 artifact 各状态的任务数，用于轮询进度
func (r *Results) Summary(ctx context.Context, artifactID string) (Summary, error) {
	var rows []struct {
		Status int
		N      int
	}
	if err := r.pool.DB().WithContext(ctx).
		Model(&TaskResultModel{}).
		Select("status, COUNT(*) AS n").
		Where("artifact_id = ?", artifactID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return Summary{}, fmt.Errorf("summarize task results: %w", err)
	}

	s := Summary{ArtifactID: artifactID, Counts: make(map[types.TaskStatus]int, len(rows))}
	for _, row := range rows {
		s.Counts[types.TaskStatus(row.Status)] = row.N
		s.Total += row.N
	}
	return s, nil
}
