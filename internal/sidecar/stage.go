package sidecar

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/PriNova/graphone/internal/lock"
	"github.com/PriNova/graphone/internal/log"
)

// Stager extracts a gzip-compressed worker binary into a runtime directory
// and keeps it fresh. The extracted binary is reused until the archive's
// fingerprint changes or the binary goes missing or fails validation.
type Stager struct {
	archive    string
	runtimeDir string
	logger     *slog.Logger
}

func NewStager(archive, runtimeDir string) *Stager {
	return &Stager{
		archive:    archive,
		runtimeDir: runtimeDir,
		logger:     log.WithComponent("sidecar-stage"),
	}
}

// BinaryPath is where the extracted worker lives.
func (s *Stager) BinaryPath() string {
	return filepath.Join(s.runtimeDir, strings.TrimSuffix(filepath.Base(s.archive), ".gz"))
}

func (s *Stager) stampPath() string {
	return s.BinaryPath() + ".stamp"
}

// Stage makes sure the runtime directory holds a valid binary for the
// current archive and returns its path. Concurrent stagers are serialized
// with a lock file.
func (s *Stager) Stage(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.runtimeDir, 0o755); err != nil {
		return "", fmt.Errorf("create runtime dir: %w", err)
	}
	l, err := lock.Acquire(ctx, filepath.Join(s.runtimeDir, ".stage.lock"))
	if err != nil {
		return "", err
	}
	defer l.Release()

	fingerprint, err := Fingerprint(s.archive)
	if err != nil {
		return "", err
	}

	binPath := s.BinaryPath()
	if s.fresh(fingerprint, binPath) {
		s.logger.Debug("runtime up to date", "path", binPath)
		return binPath, nil
	}

	s.logger.Info("staging sidecar runtime", "archive", s.archive, "runtime_dir", s.runtimeDir)
	if err := s.extract(binPath); err != nil {
		return "", err
	}
	if err := s.copySiblings(); err != nil {
		return "", err
	}
	if err := os.WriteFile(s.stampPath(), []byte(fingerprint+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write runtime stamp: %w", err)
	}
	return binPath, nil
}

func (s *Stager) fresh(fingerprint, binPath string) bool {
	stamp, err := os.ReadFile(s.stampPath())
	if err != nil || strings.TrimSpace(string(stamp)) != fingerprint {
		return false
	}
	return ValidateExecutable(binPath) == nil
}

func (s *Stager) extract(binPath string) error {
	src, err := os.Open(s.archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer src.Close()

	zr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("read archive %s: %w", s.archive, err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(s.runtimeDir, ".extract-*")
	if err != nil {
		return fmt.Errorf("create temp binary: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, zr); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("extract archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp binary: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("chmod temp binary: %w", err)
	}
	if err := ValidateExecutable(tmpPath); err != nil {
		return fmt.Errorf("extracted binary invalid: %w", err)
	}
	if err := os.Rename(tmpPath, binPath); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}
	return nil
}

// copySiblings mirrors the files shipped next to the archive into the
// runtime directory.
func (s *Stager) copySiblings() error {
	srcDir := filepath.Dir(s.archive)
	archiveName := filepath.Base(s.archive)

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("read archive dir: %w", err)
	}
	for _, e := range entries {
		if e.Name() == archiveName {
			continue
		}
		src := filepath.Join(srcDir, e.Name())
		dst := filepath.Join(s.runtimeDir, e.Name())
		if containsPath(src, s.runtimeDir) {
			continue
		}
		if err := copyTree(src, dst); err != nil {
			return fmt.Errorf("copy asset %s: %w", e.Name(), err)
		}
	}
	return nil
}

// containsPath reports whether child is parent or lies below it.
func containsPath(parent, child string) bool {
	p, err1 := filepath.Abs(parent)
	c, err2 := filepath.Abs(child)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(p, c)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Fingerprint returns the hex BLAKE3 digest of a file's contents.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ErrNotExecutable is returned for files without a known executable header.
var ErrNotExecutable = errors.New("not an executable image")

var executableMagics = [][]byte{
	{0x7f, 'E', 'L', 'F'},    // ELF
	{0xfe, 0xed, 0xfa, 0xce}, // Mach-O 32
	{0xfe, 0xed, 0xfa, 0xcf}, // Mach-O 64
	{0xce, 0xfa, 0xed, 0xfe}, // Mach-O 32, little endian
	{0xcf, 0xfa, 0xed, 0xfe}, // Mach-O 64, little endian
	{0xca, 0xfe, 0xba, 0xbe}, // Mach-O universal
	{'M', 'Z'},               // PE
}

// ValidateExecutable checks that path is a regular, non-empty file whose
// header matches a native executable format.
func ValidateExecutable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}
	header = header[:n]
	for _, magic := range executableMagics {
		if bytes.HasPrefix(header, magic) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotExecutable, path)
}
