package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// =============================================================================
// 🧲 Automagic: 单文件内存层
// =============================================================================

// PrimaryLayer is the requirement name for the memory layer backed by the
// input image.
const PrimaryLayer = "primary"

// LayerStacker resolves the primary memory layer from SingleLocationKey.
type LayerStacker struct{}

// Name implements Automagic.
func (LayerStacker) Name() string { return "LayerStacker" }

// Priority implements Automagic.
func (LayerStacker) Priority() int { return 10 }

// Applies reports whether def asks for a primary layer.
func (LayerStacker) Applies(def Definition) bool {
	for _, req := range def.Requirements() {
		if req.Name == PrimaryLayer {
			return true
		}
	}
	return false
}

// Run checks the configured location is a readable file and records it as
// the plugin's primary layer.
func (LayerStacker) Run(pctx *Context, configPath string, _ Definition) error {
	location := pctx.GetString(SingleLocationKey)
	if location == "" {
		return errors.New("no single location configured")
	}
	path, err := PathFromURL(location)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat layer: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("layer %s is a directory", path)
	}
	pctx.Set(JoinPath(configPath, PrimaryLayer), path)
	return nil
}

// =============================================================================
// 🏷️ banners.Banners
// =============================================================================

const (
	bannerChunkSize = 1 << 20
	maxBannerLen    = 256
)

var bannerSignatures = [][]byte{
	[]byte("Linux version "),
	[]byte("Darwin Kernel Version "),
}

// Banners scans the primary layer for kernel banner strings.
type Banners struct{}

// Name implements Definition.
func (Banners) Name() string { return "banners.Banners" }

// Requirements implements Definition.
func (Banners) Requirements() []Requirement {
	return []Requirement{
		{Name: PrimaryLayer, Description: "Memory layer to scan for kernel banners"},
	}
}

// New implements Definition.
func (Banners) New(pctx *Context, configPath string) (Plugin, error) {
	path := pctx.GetString(JoinPath(configPath, PrimaryLayer))
	if path == "" {
		return nil, errors.New("primary layer is not a path")
	}
	return &bannerScan{path: path}, nil
}

type bannerScan struct {
	path string
}

type bannerHit struct {
	offset int64
	text   string
}

func (b *bannerScan) Run(ctx context.Context) (*Tree, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("open layer: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat layer: %w", err)
	}

	hits, err := scanBanners(ctx, f, info.Size())
	if err != nil {
		return nil, err
	}

	tree := NewTree(
		Column{Name: "Offset", Type: TypeHex},
		Column{Name: "Banner", Type: TypeString},
	)
	for _, h := range hits {
		tree.Add(nil, Hex(h.offset), h.text)
	}
	return tree, nil
}

// scanBanners reads r in overlapping chunks. A hit is reported by the chunk
// its first byte falls in, so overlaps never produce duplicates.
func scanBanners(ctx context.Context, r io.ReaderAt, size int64) ([]bannerHit, error) {
	var hits []bannerHit
	buf := make([]byte, bannerChunkSize+maxBannerLen)

	for base := int64(0); base < size; base += bannerChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		want := int64(len(buf))
		if rest := size - base; rest < want {
			want = rest
		}
		n, err := r.ReadAt(buf[:want], base)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read layer at %#x: %w", base, err)
		}
		window := buf[:n]

		var chunkHits []bannerHit
		for _, sig := range bannerSignatures {
			for from := 0; from < len(window); {
				i := bytes.Index(window[from:], sig)
				if i < 0 {
					break
				}
				start := from + i
				if start >= bannerChunkSize {
					break
				}
				chunkHits = append(chunkHits, bannerHit{
					offset: base + int64(start),
					text:   bannerText(window[start:]),
				})
				from = start + len(sig)
			}
		}
		sort.Slice(chunkHits, func(i, j int) bool { return chunkHits[i].offset < chunkHits[j].offset })
		hits = append(hits, chunkHits...)
	}
	return hits, nil
}

func bannerText(b []byte) string {
	if len(b) > maxBannerLen {
		b = b[:maxBannerLen]
	}
	end := len(b)
	for i, c := range b {
		if c == 0 || c == '\n' || c < 0x20 || c > 0x7e {
			end = i
			break
		}
	}
	return string(b[:end])
}

// =============================================================================
// 📋 frameworkinfo.FrameworkInfo
// =============================================================================

// FrameworkInfo lists the registered plugins with their requirements as
// child rows.
type FrameworkInfo struct {
	Registry *Registry
}

// Name implements Definition.
func (FrameworkInfo) Name() string { return "frameworkinfo.FrameworkInfo" }

// Requirements implements Definition.
func (FrameworkInfo) Requirements() []Requirement { return nil }

// New implements Definition.
func (f FrameworkInfo) New(*Context, string) (Plugin, error) {
	if f.Registry == nil {
		return nil, errors.New("frameworkinfo: registry not set")
	}
	return frameworkInfoRun{registry: f.Registry}, nil
}

type frameworkInfoRun struct {
	registry *Registry
}

func (f frameworkInfoRun) Run(ctx context.Context) (*Tree, error) {
	tree := NewTree(
		Column{Name: "Name", Type: TypeString},
		Column{Name: "Kind", Type: TypeString},
		Column{Name: "Detail", Type: TypeString},
		Column{Name: "Optional", Type: TypeBool},
	)
	for _, name := range f.registry.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		def, ok := f.registry.Get(name)
		if !ok {
			continue
		}
		parent := tree.Add(nil, name, "plugin", NotApplicable, NotApplicable)
		for _, req := range def.Requirements() {
			tree.Add(parent, req.Name, "requirement", req.Description, req.Optional)
		}
	}
	return tree, nil
}

// DefaultRegistry returns a registry with the built-in automagics and
// plugins.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterAutomagic(LayerStacker{})
	_ = r.Register(Banners{})
	_ = r.Register(FrameworkInfo{Registry: r})
	return r
}
