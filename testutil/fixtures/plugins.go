// =============================================================================
// 📦 测试数据工厂 - 插件与结果树
// =============================================================================
// 提供行为可预测的插件定义，覆盖任务的每一种终态
// =============================================================================
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/dumpflow/plugin"
)

// Fixture plugin names.
const (
	ProcessListPlugin = "linux.pslist.PsList"
	EmptyPlugin       = "linux.empty.Empty"
	FailingPlugin     = "linux.failing.Failing"
	PanickingPlugin   = "linux.panicking.Panicking"
	UnsatisfiedPlugin = "linux.unsatisfied.Unsatisfied"
	BlockingPlugin    = "linux.blocking.Blocking"
)

// ErrPluginBroken is returned by the failing fixture, wrapped once.
var ErrPluginBroken = errors.New("symbol table not found")

// =============================================================================
// 🌳 样例结果树
// =============================================================================

// ProcessColumns 进程列表的列
func ProcessColumns() []plugin.Column {
	return []plugin.Column{
		{Name: "PID", Type: plugin.TypeInt},
		{Name: "Name", Type: plugin.TypeString},
		{Name: "Offset", Type: plugin.TypeHex},
	}
}

// ProcessTree 返回 2 个根进程、共 4 个节点的树:
//
//	1 systemd
//	├── 200 sshd
//	│   └── 201 bash
//	2 kthreadd（Offset 缺失）
func ProcessTree() *plugin.Tree {
	tree := plugin.NewTree(ProcessColumns()...)
	systemd := tree.Add(nil, 1, "systemd", plugin.Hex(0xffff0001))
	sshd := tree.Add(systemd, 200, "sshd", plugin.Hex(0xffff0200))
	tree.Add(sshd, 201, "bash", plugin.Hex(0xffff0201))
	tree.Add(nil, 2, "kthreadd", plugin.NotAvailable)
	return tree
}

// =============================================================================
// 🔌 插件定义
// =============================================================================

// Static 返回固定结果树的插件定义
type Static struct {
	PluginName string
	Tree       func() *plugin.Tree
}

// Name implements plugin.Definition.
func (s Static) Name() string { return s.PluginName }

// Requirements implements plugin.Definition.
func (Static) Requirements() []plugin.Requirement {
	return []plugin.Requirement{{Name: plugin.PrimaryLayer, Description: "Memory layer for the image"}}
}

// New implements plugin.Definition.
func (s Static) New(*plugin.Context, string) (plugin.Plugin, error) {
	return runFunc(func(context.Context) (*plugin.Tree, error) { return s.Tree(), nil }), nil
}

// Failing 运行时返回包装后的 ErrPluginBroken
type Failing struct{}

// Name implements plugin.Definition.
func (Failing) Name() string { return FailingPlugin }

// Requirements implements plugin.Definition.
func (Failing) Requirements() []plugin.Requirement { return nil }

// New implements plugin.Definition.
func (Failing) New(*plugin.Context, string) (plugin.Plugin, error) {
	return runFunc(func(context.Context) (*plugin.Tree, error) {
		return nil, fmt.Errorf("walk task list: %w", ErrPluginBroken)
	}), nil
}

// Panicking 运行时 panic
type Panicking struct{}

// Name implements plugin.Definition.
func (Panicking) Name() string { return PanickingPlugin }

// Requirements implements plugin.Definition.
func (Panicking) Requirements() []plugin.Requirement { return nil }

// New implements plugin.Definition.
func (Panicking) New(*plugin.Context, string) (plugin.Plugin, error) {
	return runFunc(func(context.Context) (*plugin.Tree, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	}), nil
}

// Unsatisfied 需要两项没有 automagic 能提供的配置，描述为 "A" 和 "B"
type Unsatisfied struct{}

// Name implements plugin.Definition.
func (Unsatisfied) Name() string { return UnsatisfiedPlugin }

// Requirements implements plugin.Definition.
func (Unsatisfied) Requirements() []plugin.Requirement {
	return []plugin.Requirement{
		{Name: "kernel", Description: "A"},
		{Name: "symbol_table", Description: "B"},
		{Name: "pid", Description: "optional pid filter", Optional: true},
	}
}

// New implements plugin.Definition.
func (Unsatisfied) New(*plugin.Context, string) (plugin.Plugin, error) {
	return nil, errors.New("unreachable: requirements are never met")
}

// Blocking 阻塞到 ctx 结束；IgnoreContext 时改为阻塞 Hold 时长
type Blocking struct {
	IgnoreContext bool
	Hold          time.Duration
}

// Name implements plugin.Definition.
func (Blocking) Name() string { return BlockingPlugin }

// Requirements implements plugin.Definition.
func (Blocking) Requirements() []plugin.Requirement { return nil }

// New implements plugin.Definition.
func (b Blocking) New(*plugin.Context, string) (plugin.Plugin, error) {
	return runFunc(func(ctx context.Context) (*plugin.Tree, error) {
		if b.IgnoreContext {
			time.Sleep(b.Hold)
			return plugin.NewTree(), nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}), nil
}

type runFunc func(ctx context.Context) (*plugin.Tree, error)

func (f runFunc) Run(ctx context.Context) (*plugin.Tree, error) { return f(ctx) }

// Registry 返回注册了 LayerStacker 与全部测试插件的注册表
func Registry() *plugin.Registry {
	r := plugin.NewRegistry()
	r.RegisterAutomagic(plugin.LayerStacker{})
	for _, def := range []plugin.Definition{
		Static{PluginName: ProcessListPlugin, Tree: ProcessTree},
		Static{PluginName: EmptyPlugin, Tree: func() *plugin.Tree { return plugin.NewTree(ProcessColumns()...) }},
		Failing{},
		Panicking{},
		Unsatisfied{},
		Blocking{},
	} {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}
