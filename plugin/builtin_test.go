package plugin

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mem.raw")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func runBuiltin(t *testing.T, r *Registry, name, imagePath string) (*Tree, error) {
	t.Helper()
	def, ok := r.Get(name)
	require.True(t, ok)

	pctx := NewContext()
	if imagePath != "" {
		location, err := FileURL(imagePath)
		require.NoError(t, err)
		pctx.Set(SingleLocationKey, location)
	}
	res, err := Construct(context.Background(), pctx, ChooseAutomagic(r.Automagics(), def), def, "plugins")
	if err != nil {
		return nil, err
	}
	return res.Plugin.Run(context.Background())
}

func TestBanners_FindsBannersAcrossChunks(t *testing.T) {
	data := make([]byte, bannerChunkSize+4096)
	first := []byte("Linux version 5.15.0-91-generic (buildd@lcy02)\n")
	copy(data[128:], first)
	// 跨越分块边界
	second := []byte("Darwin Kernel Version 21.6.0: Mon Aug 22\x00")
	copy(data[bannerChunkSize-10:], second)

	tree, err := runBuiltin(t, DefaultRegistry(), "banners.Banners", writeImage(t, data))
	require.NoError(t, err)
	require.Equal(t, 2, tree.Len())

	roots := tree.Roots()
	assert.Equal(t, Hex(128), roots[0].Values()[0])
	assert.Equal(t, "Linux version 5.15.0-91-generic (buildd@lcy02)", roots[0].Values()[1])
	assert.Equal(t, Hex(bannerChunkSize-10), roots[1].Values()[0])
	assert.Equal(t, "Darwin Kernel Version 21.6.0: Mon Aug 22", roots[1].Values()[1])
}

func TestBanners_EmptyImage(t *testing.T) {
	tree, err := runBuiltin(t, DefaultRegistry(), "banners.Banners", writeImage(t, bytes.Repeat([]byte{0}, 1024)))
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestBanners_MissingImageIsUnsatisfied(t *testing.T) {
	_, err := runBuiltin(t, DefaultRegistry(), "banners.Banners", filepath.Join(t.TempDir(), "gone.raw"))
	require.Error(t, err)

	unsat, ok := err.(*UnsatisfiedError)
	require.True(t, ok)
	assert.Equal(t, []string{"Memory layer to scan for kernel banners"}, unsat.Descriptions())
}

func TestBanners_HonoursCancellation(t *testing.T) {
	path := writeImage(t, make([]byte, 2*bannerChunkSize))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scanBanners(ctx, f, 2*bannerChunkSize)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrameworkInfo_NestedTree(t *testing.T) {
	r := DefaultRegistry()
	tree, err := runBuiltin(t, r, "frameworkinfo.FrameworkInfo", "")
	require.NoError(t, err)

	roots := tree.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "banners.Banners", roots[0].Values()[0])
	require.Len(t, roots[0].Children(), 1)
	child := roots[0].Children()[0]
	assert.Equal(t, PrimaryLayer, child.Values()[0])
	assert.Equal(t, false, child.Values()[3])
	assert.True(t, IsAbsent(roots[0].Values()[2]))
	assert.Equal(t, 3, tree.Len())
}

func TestBannerText(t *testing.T) {
	assert.Equal(t, "Linux version 6.1", bannerText([]byte("Linux version 6.1\x00junk")))
	long := bytes.Repeat([]byte("a"), maxBannerLen+50)
	assert.Len(t, bannerText(long), maxBannerLen)
}
