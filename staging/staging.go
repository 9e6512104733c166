package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/types"
)

// Stager extracts uploaded archives.
type Stager struct {
	logger *zap.Logger
}

// New creates a Stager.
func New(logger *zap.Logger) *Stager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{logger: logger.With(zap.String("component", "staging"))}
}

// Stage returns the path the plugins should read. For a zip archive holding
// exactly one file, that file is extracted beside the archive and its path is
// returned; calling Stage again reuses the extracted file. Archives with zero
// or several files fail with ARCHIVE_ERROR. Directory entries are ignored.
func (s *Stager) Stage(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return path, nil
		}
		if _, statErr := os.Stat(path); statErr != nil {
			return "", types.NewError(types.ErrArchive, fmt.Sprintf("artifact %s is not readable", path)).WithCause(statErr)
		}
		return "", types.NewError(types.ErrArchive, fmt.Sprintf("open archive %s", path)).WithCause(err)
	}
	defer zr.Close()
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	var files []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		files = append(files, f)
	}
	if len(files) != 1 {
		return "", types.NewError(types.ErrArchive,
			fmt.Sprintf("archive %s must contain exactly one file, found %d", path, len(files)))
	}
	entry := files[0]

	dir := filepath.Dir(path)
	target, err := memberPath(dir, entry.Name)
	if err != nil {
		return "", types.NewError(types.ErrArchive, err.Error())
	}
	if target == filepath.Clean(path) {
		return "", types.NewError(types.ErrArchive, fmt.Sprintf("archive member %q would overwrite the archive", entry.Name))
	}

	if fi, err := os.Stat(target); err == nil && fi.Mode().IsRegular() && uint64(fi.Size()) == entry.UncompressedSize64 {
		s.logger.Debug("reusing extracted member", zap.String("path", target))
		return target, nil
	}

	if err := extract(ctx, entry, target); err != nil {
		return "", types.NewError(types.ErrArchive, fmt.Sprintf("extract %s", entry.Name)).WithCause(err)
	}

	s.logger.Info("archive extracted",
		zap.String("archive", path),
		zap.String("path", target),
		zap.Uint64("bytes", entry.UncompressedSize64))
	return target, nil
}

// memberPath resolves an archive member name under dir, rejecting names that
// would land outside it.
func memberPath(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes the artifact directory", name)
	}
	return filepath.Join(dir, clean), nil
}

// extract writes the member to a temp file and renames it into place, so a
// concurrent or interrupted Stage never leaves a truncated target.
func extract(ctx context.Context, entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), ".staging-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: rc}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
