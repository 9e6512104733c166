package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// 🔌 插件契约
// =============================================================================

// Requirement 插件运行前必须满足的配置项
type Requirement struct {
	Name        string
	Description string
	Optional    bool
}

// Plugin is a constructed, runnable analysis plugin.
type Plugin interface {
	// Run executes the analysis. Implementations should check ctx between
	// units of work so a deadline can stop them.
	Run(ctx context.Context) (*Tree, error)
}

// Definition describes a plugin and builds instances of it.
type Definition interface {
	Name() string
	Requirements() []Requirement
	// New builds the plugin once every required configuration value is
	// present under configPath.
	New(pctx *Context, configPath string) (Plugin, error)
}

// Automagic fills in configuration a plugin needs but the caller did not
// provide explicitly.
type Automagic interface {
	Name() string
	// Priority orders automagics; lower runs first.
	Priority() int
	Applies(def Definition) bool
	Run(pctx *Context, configPath string, def Definition) error
}

// UnmetRequirement is one requirement left unsatisfied after automagic.
type UnmetRequirement struct {
	Path        string
	Description string
}

// UnsatisfiedError is returned by Construct when required configuration is
// missing.
type UnsatisfiedError struct {
	Plugin string
	Unmet  []UnmetRequirement
}

// Error implements the error interface.
func (e *UnsatisfiedError) Error() string {
	paths := make([]string, len(e.Unmet))
	for i, u := range e.Unmet {
		paths[i] = u.Path
	}
	return fmt.Sprintf("plugin %s has unsatisfied requirements: %s", e.Plugin, strings.Join(paths, ", "))
}

// Descriptions returns the human-readable description of each unmet
// requirement, in requirement order.
func (e *UnsatisfiedError) Descriptions() []string {
	out := make([]string, len(e.Unmet))
	for i, u := range e.Unmet {
		out[i] = u.Description
	}
	return out
}

// AutomagicError records an automagic that failed during construction.
// Construction continues; the failure usually surfaces as an unmet
// requirement.
type AutomagicError struct {
	Automagic string
	Err       error
}

// ConstructResult carries the constructed plugin and non-fatal automagic
// failures.
type ConstructResult struct {
	Plugin          Plugin
	AutomagicErrors []AutomagicError
}

// Construct runs the chosen automagics against pctx and builds the plugin.
func Construct(ctx context.Context, pctx *Context, automagics []Automagic, def Definition, basePath string) (*ConstructResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configPath := JoinPath(basePath, def.Name())
	result := &ConstructResult{}

	for _, am := range automagics {
		if err := am.Run(pctx, configPath, def); err != nil {
			result.AutomagicErrors = append(result.AutomagicErrors, AutomagicError{Automagic: am.Name(), Err: err})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var unmet []UnmetRequirement
	for _, req := range def.Requirements() {
		path := JoinPath(configPath, req.Name)
		if req.Optional || pctx.Has(path) {
			continue
		}
		unmet = append(unmet, UnmetRequirement{Path: path, Description: req.Description})
	}
	if len(unmet) > 0 {
		return nil, &UnsatisfiedError{Plugin: def.Name(), Unmet: unmet}
	}

	p, err := def.New(pctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", def.Name(), err)
	}
	result.Plugin = p
	return result, nil
}

// ChooseAutomagic de-duplicates automagics by name and keeps those that
// apply to def, ordered by priority.
func ChooseAutomagic(available []Automagic, def Definition) []Automagic {
	seen := make(map[string]struct{}, len(available))
	chosen := make([]Automagic, 0, len(available))
	for _, am := range available {
		if _, dup := seen[am.Name()]; dup {
			continue
		}
		seen[am.Name()] = struct{}{}
		if am.Applies(def) {
			chosen = append(chosen, am)
		}
	}
	sort.SliceStable(chosen, func(i, j int) bool {
		return chosen[i].Priority() < chosen[j].Priority()
	})
	return chosen
}

// =============================================================================
// 📚 插件注册表
// =============================================================================

// Registry holds the plugin definitions and automagics known to the engine.
type Registry struct {
	mu         sync.RWMutex
	defs       map[string]Definition
	automagics []Automagic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a plugin definition.
func (r *Registry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name() == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if _, exists := r.defs[def.Name()]; exists {
		return fmt.Errorf("plugin %s already registered", def.Name())
	}
	r.defs[def.Name()] = def
	return nil
}

// RegisterAutomagic adds an automagic.
func (r *Registry) RegisterAutomagic(am Automagic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.automagics = append(r.automagics, am)
}

// Get looks up a definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Automagics returns a copy of the registered automagics.
func (r *Registry) Automagics() []Automagic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Automagic, len(r.automagics))
	copy(out, r.automagics)
	return out
}
