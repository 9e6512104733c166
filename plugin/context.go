package plugin

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// Parallelism controls concurrency inside a single plugin run.
type Parallelism int

const (
	ParallelismOff Parallelism = iota
	ParallelismThreads
)

// SingleLocationKey is the configuration key the layer automagic reads the
// input image location from.
const SingleLocationKey = "automagic.LayerStacker.single_location"

// Context 单次插件执行的隔离配置上下文
//
// A Context is created per task and never shared; it is not safe for
// concurrent use.
type Context struct {
	config      map[string]any
	parallelism Parallelism
}

// NewContext returns an empty context with parallelism disabled.
func NewContext() *Context {
	return &Context{
		config:      make(map[string]any),
		parallelism: ParallelismOff,
	}
}

// Parallelism returns the configured parallelism.
func (c *Context) Parallelism() Parallelism { return c.parallelism }

// Set stores a configuration value.
func (c *Context) Set(key string, value any) {
	c.config[key] = value
}

// Get retrieves a configuration value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.config[key]
	return v, ok
}

// GetString retrieves a string value, or "" when absent.
func (c *Context) GetString(key string) string {
	if v, ok := c.config[key].(string); ok {
		return v
	}
	return ""
}

// Has reports whether key is set.
func (c *Context) Has(key string) bool {
	_, ok := c.config[key]
	return ok
}

// Keys returns the configured keys in sorted order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.config))
	for k := range c.config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JoinPath joins configuration path segments with '.'.
func JoinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "."); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// FileURL converts a filesystem path to an absolute file: URL.
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// PathFromURL converts a file: URL back to a local path.
func PathFromURL(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location %q: %w", location, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}
