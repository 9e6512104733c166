// =============================================================================
// 🎭 Mock Submitter
// =============================================================================
// 记录提交的任务，不执行；可按插件名注入提交失败
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/dumpflow/types"
)

// RecordingSubmitter 记录所有提交的任务
type RecordingSubmitter struct {
	mu        sync.Mutex
	submitted []types.TaskSpec
	failures  map[string]error
}

// NewRecordingSubmitter 创建 RecordingSubmitter
func NewRecordingSubmitter() *RecordingSubmitter {
	return &RecordingSubmitter{failures: make(map[string]error)}
}

// FailFor 让指定插件的提交返回 err
func (s *RecordingSubmitter) FailFor(pluginName string, err error) *RecordingSubmitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pluginName] = err
	return s
}

// Submit implements worker.Submitter.
func (s *RecordingSubmitter) Submit(_ context.Context, spec types.TaskSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[spec.Plugin.Name]; ok {
		return err
	}
	s.submitted = append(s.submitted, spec)
	return nil
}

// Mode implements worker.Submitter.
func (s *RecordingSubmitter) Mode() string { return "mock" }

// Submitted 返回已成功提交的任务副本
func (s *RecordingSubmitter) Submitted() []types.TaskSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.TaskSpec, len(s.submitted))
	copy(out, s.submitted)
	return out
}

// Plugins 返回已提交任务的插件名，按提交顺序
func (s *RecordingSubmitter) Plugins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.submitted))
	for i, spec := range s.submitted {
		out[i] = spec.Plugin.Name
	}
	return out
}
