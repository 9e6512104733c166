package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/dumpflow/internal/database"
	"github.com/BaSui01/dumpflow/types"
)

// Catalog 插件目录
type Catalog struct {
	pool *database.PoolManager
}

// NewCatalog 创建插件目录仓库
func NewCatalog(pool *database.PoolManager) *Catalog {
	return &Catalog{pool: pool}
}

// ListByOS 返回适用于 os 的全部插件（含禁用项），按名称排序
func (c *Catalog) ListByOS(ctx context.Context, os types.OperatingSystem) ([]types.PluginDescriptor, error) {
	var rows []PluginModel
	if err := c.pool.DB().WithContext(ctx).
		Where("operating_system = ?", int(os)).
		Order("name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list plugins for %s: %w", os, err)
	}
	out := make([]types.PluginDescriptor, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// List 返回全部插件
func (c *Catalog) List(ctx context.Context) ([]types.PluginDescriptor, error) {
	var rows []PluginModel
	if err := c.pool.DB().WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	out := make([]types.PluginDescriptor, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// Save 插入插件；已存在时只更新操作系统分类，保留禁用标记
func (c *Catalog) Save(ctx context.Context, d types.PluginDescriptor) error {
	m := PluginModel{
		Name:            d.Name,
		OperatingSystem: int(d.OperatingSystem),
		Disabled:        d.Disabled,
	}
	err := c.pool.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"operating_system", "updated_at"}),
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("save plugin %s: %w", d.Name, err)
	}
	return nil
}

// Register 按插件名前缀分类后登记一批插件，返回登记数量
func (c *Catalog) Register(ctx context.Context, names []string) (int, error) {
	for i, name := range names {
		d := types.PluginDescriptor{Name: name, OperatingSystem: types.ClassifyPlugin(name)}
		if err := c.Save(ctx, d); err != nil {
			return i, err
		}
	}
	return len(names), nil
}

// SetDisabled 修改插件的禁用标记
func (c *Catalog) SetDisabled(ctx context.Context, name string, disabled bool) error {
	res := c.pool.DB().WithContext(ctx).
		Model(&PluginModel{}).
		Where("name = ?", name).
		Update("disabled", disabled)
	if res.Error != nil {
		return fmt.Errorf("update plugin %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrNotFound, fmt.Sprintf("plugin %s not in catalog", name))
	}
	return nil
}

// Artifacts Artifact 读取
type Artifacts struct {
	pool *database.PoolManager
}

// NewArtifacts 创建 Artifact 仓库
func NewArtifacts(pool *database.PoolManager) *Artifacts {
	return &Artifacts{pool: pool}
}

// Get 按 ID 读取 Artifact
func (a *Artifacts) Get(ctx context.Context, id string) (types.Artifact, error) {
	var m ArtifactModel
	err := a.pool.DB().WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Artifact{}, types.NewError(types.ErrNotFound, fmt.Sprintf("artifact %s not found", id))
		}
		return types.Artifact{}, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return m.toDomain(), nil
}

// Save 登记 Artifact（上传路径调用）
func (a *Artifacts) Save(ctx context.Context, art types.Artifact) error {
	m := ArtifactModel{
		ID:              art.ID,
		Path:            art.Path,
		OperatingSystem: int(art.OperatingSystem),
		IndexName:       art.Index,
	}
	if err := a.pool.DB().WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("save artifact %s: %w", art.ID, err)
	}
	return nil
}
