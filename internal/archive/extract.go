// Package archive extracts uploaded dataset archives into a working
// directory. Entry names are validated against path traversal before any
// byte is written.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/qerrors"
)

const opExtract = "archive.extract"

// Ingester extracts archives. It performs no network I/O.
type Ingester struct {
	logger *zap.Logger
}

// NewIngester creates an archive ingester.
func NewIngester(logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{logger: logger}
}

// Extract unpacks archivePath into destDir. ZIP and the tar family (plain,
// gzip, bzip2, xz) are recognized by extension; any other file is copied into
// destDir verbatim. An entry with an absolute name, or whose cleaned path
// escapes destDir, aborts the whole operation before anything is written.
func (in *Ingester) Extract(archivePath, destDir string) error {
	if _, err := os.Stat(archivePath); err != nil {
		return qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "archive not found")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
	}

	name := strings.ToLower(filepath.Base(archivePath))
	var err error
	switch {
	case strings.HasSuffix(name, ".zip"):
		err = in.extractZip(archivePath, destDir)
	case isTarArchive(name):
		err = in.extractTar(archivePath, destDir)
	default:
		err = in.copyPlainFile(archivePath, destDir)
	}
	if err != nil {
		return err
	}

	in.logger.Info("archive extracted",
		zap.String("archive", archivePath),
		zap.String("dest", destDir),
	)
	return nil
}

func isTarArchive(name string) bool {
	for _, suffix := range []string{".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tbz2", ".tar.xz", ".txz"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// securePath resolves an entry name inside destDir, rejecting absolute names
// and any name escaping destDir after cleaning.
func securePath(destDir, entryName string) (string, error) {
	if filepath.IsAbs(entryName) || strings.HasPrefix(entryName, "/") {
		return "", qerrors.New(opExtract, qerrors.KindSecurity,
			"archive entry uses an absolute path: %s", entryName)
	}
	target := filepath.Join(destDir, filepath.FromSlash(entryName))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", qerrors.New(opExtract, qerrors.KindSecurity,
			"archive entry escapes the target directory: %s", entryName)
	}
	return target, nil
}

func (in *Ingester) extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		// The standard library already rejects entries with traversing
		// names at open time.
		if errors.Is(err, zip.ErrInsecurePath) {
			return qerrors.Wrapf(opExtract, qerrors.KindSecurity, err,
				"archive entry escapes the target directory")
		}
		return qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "cannot open zip archive")
	}
	defer r.Close()

	// Validate every entry before writing anything.
	targets := make([]string, len(r.File))
	for i, f := range r.File {
		target, err := securePath(destDir, f.Name)
		if err != nil {
			return err
		}
		targets[i] = target
	}

	for i, f := range r.File {
		if err := in.writeZipEntry(f, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Ingester) writeZipEntry(f *zip.File, target string) error {
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
	}

	src, err := f.Open()
	if err != nil {
		return qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "cannot read zip entry %s", f.Name)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(f.Mode()))
	if err != nil {
		return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return qerrors.Wrapf(opExtract, qerrors.KindInternal, err, "cannot extract %s", f.Name)
	}
	return nil
}

func (in *Ingester) extractTar(archivePath, destDir string) error {
	// First pass validates every entry name so nothing is written when a
	// later entry is malicious.
	if err := in.scanTar(archivePath, destDir); err != nil {
		return err
	}

	tr, closer, err := openTar(archivePath)
	if err != nil {
		return err
	}
	defer closer.Close()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "corrupt tar archive")
		}

		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
			}
			dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(hdr.FileInfo().Mode()))
			if err != nil {
				return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
			}
			if _, err := io.Copy(dst, tr); err != nil {
				dst.Close()
				return qerrors.Wrapf(opExtract, qerrors.KindInternal, err, "cannot extract %s", hdr.Name)
			}
			dst.Close()
		default:
			// Symlinks, devices and the rest are not dataset content.
			in.logger.Warn("skipping unsupported tar entry",
				zap.String("name", hdr.Name),
				zap.Uint8("type", hdr.Typeflag),
			)
		}
	}
}

func (in *Ingester) scanTar(archivePath, destDir string) error {
	tr, closer, err := openTar(archivePath)
	if err != nil {
		return err
	}
	defer closer.Close()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "corrupt tar archive")
		}
		if _, err := securePath(destDir, hdr.Name); err != nil {
			return err
		}
	}
}

// openTar opens archivePath with the decompressor its extension calls for.
func openTar(archivePath string) (*tar.Reader, io.Closer, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "cannot open tar archive")
	}

	name := strings.ToLower(filepath.Base(archivePath))
	var reader io.Reader = f
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "corrupt gzip stream")
		}
		reader = gz
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, qerrors.Wrapf(opExtract, qerrors.KindInvalid, err, "corrupt xz stream")
		}
		reader = xzr
	}

	return tar.NewReader(reader), f, nil
}

// copyPlainFile treats a non-archive upload as a single opaque file.
func (in *Ingester) copyPlainFile(srcPath, destDir string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(destDir, filepath.Base(srcPath)))
	if err != nil {
		return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return qerrors.Wrap(opExtract, qerrors.KindInternal, err)
	}
	return nil
}

func entryMode(mode fs.FileMode) fs.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	return perm
}

// DirectoryStats walks dir and returns the number of regular files and their
// total byte size. Files whose base name matches one of the ignore names are
// skipped, so bookkeeping files do not count as content.
func DirectoryStats(dir string, ignore ...string) (int, int64, error) {
	ignored := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ignored[name] = true
	}

	files := 0
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !ignored[d.Name()] {
			info, err := d.Info()
			if err != nil {
				return err
			}
			files++
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	return files, size, nil
}
