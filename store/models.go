package store

import (
	"time"

	"github.com/BaSui01/dumpflow/types"
)

// TaskResultModel task_results 表
type TaskResultModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ArtifactID  string    `gorm:"column:artifact_id;size:64;not null;uniqueIndex:uq_task_results_artifact_plugin,priority:1;index:idx_task_results_artifact_status,priority:1"`
	PluginName  string    `gorm:"column:plugin_name;size:255;not null;uniqueIndex:uq_task_results_artifact_plugin,priority:2"`
	Status      int       `gorm:"column:status;not null;index:idx_task_results_artifact_status,priority:2"`
	Description string    `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName 表名
func (TaskResultModel) TableName() string { return "task_results" }

func (m TaskResultModel) toDomain() types.TaskResult {
	return types.TaskResult{
		ArtifactID:  m.ArtifactID,
		PluginName:  m.PluginName,
		Status:      types.TaskStatus(m.Status),
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// PluginModel plugins 表
type PluginModel struct {
	Name            string    `gorm:"column:name;primaryKey;size:255"`
	OperatingSystem int       `gorm:"column:operating_system;not null;index:idx_plugins_os"`
	Disabled        bool      `gorm:"column:disabled;not null"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName 表名
func (PluginModel) TableName() string { return "plugins" }

func (m PluginModel) toDomain() types.PluginDescriptor {
	return types.PluginDescriptor{
		Name:            m.Name,
		OperatingSystem: types.OperatingSystem(m.OperatingSystem),
		Disabled:        m.Disabled,
	}
}

// ArtifactModel artifacts 表
type ArtifactModel struct {
	ID              string    `gorm:"column:id;primaryKey;size:64"`
	Path            string    `gorm:"column:path;type:text;not null"`
	OperatingSystem int       `gorm:"column:operating_system;not null"`
	IndexName       string    `gorm:"column:index_name;size:255;not null"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

// TableName 表名
func (ArtifactModel) TableName() string { return "artifacts" }

func (m ArtifactModel) toDomain() types.Artifact {
	return types.Artifact{
		ID:              m.ID,
		Path:            m.Path,
		OperatingSystem: types.OperatingSystem(m.OperatingSystem),
		Index:           m.IndexName,
	}
}

// Models 返回全部模型，供测试中的 AutoMigrate 使用；生产环境走 internal/migration
func Models() []any {
	return []any{&ArtifactModel{}, &PluginModel{}, &TaskResultModel{}}
}
