package types

import (
	"fmt"
	"strings"
)

// OperatingSystem 内存镜像的操作系统分类
type OperatingSystem int

const (
	OSUnknown OperatingSystem = iota
	OSLinux
	OSWindows
	OSMac
	OSOther
)

// String returns the lowercase classification name.
func (o OperatingSystem) String() string {
	switch o {
	case OSLinux:
		return "linux"
	case OSWindows:
		return "windows"
	case OSMac:
		return "mac"
	case OSOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseOperatingSystem parses a classification name.
func ParseOperatingSystem(s string) (OperatingSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return OSLinux, nil
	case "windows":
		return OSWindows, nil
	case "mac", "macos", "darwin":
		return OSMac, nil
	case "other":
		return OSOther, nil
	default:
		return OSUnknown, fmt.Errorf("unknown operating system: %q", s)
	}
}

// ClassifyPlugin 根据插件名前缀推断其适用的操作系统
func ClassifyPlugin(name string) OperatingSystem {
	switch {
	case strings.HasPrefix(name, "linux"):
		return OSLinux
	case strings.HasPrefix(name, "windows"):
		return OSWindows
	case strings.HasPrefix(name, "mac"):
		return OSMac
	default:
		return OSOther
	}
}

// Artifact is an uploaded memory image. It is created by the upload path and
// is read-only here.
type Artifact struct {
	ID              string          `json:"id"`
	Path            string          `json:"path"`
	OperatingSystem OperatingSystem `json:"operating_system"`
	// Index is the stable name used as the search index partition prefix.
	Index string `json:"index"`
}

// PluginDescriptor 插件目录条目
type PluginDescriptor struct {
	Name            string          `json:"name"`
	OperatingSystem OperatingSystem `json:"operating_system"`
	Disabled        bool            `json:"disabled"`
}

// IndexName returns the index partition for an artifact/plugin pair.
func IndexName(artifact Artifact, plugin PluginDescriptor) string {
	return fmt.Sprintf("%s_%s", artifact.Index, strings.ToLower(plugin.Name))
}
