package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey    contextKey = "trace_id"
	artifactIDKey contextKey = "artifact_id"
	pluginKey     contextKey = "plugin"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceIDKey)
}

// WithTask 设置当前任务所属的 artifact 与插件
func WithTask(ctx context.Context, artifactID, plugin string) context.Context {
	ctx = context.WithValue(ctx, artifactIDKey, artifactID)
	return context.WithValue(ctx, pluginKey, plugin)
}

// ArtifactID 获取 artifact ID
func ArtifactID(ctx context.Context) (string, bool) {
	return stringValue(ctx, artifactIDKey)
}

// Plugin 获取插件名
func Plugin(ctx context.Context) (string, bool) {
	return stringValue(ctx, pluginKey)
}

// Fields 返回 context 中已设置的任务标识，作为日志字段
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if v, ok := TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", v))
	}
	if v, ok := ArtifactID(ctx); ok {
		fields = append(fields, zap.String("artifact_id", v))
	}
	if v, ok := Plugin(ctx); ok {
		fields = append(fields, zap.String("plugin", v))
	}
	return fields
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
