package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/target/seclab-api/internal/domain/pathsafe"
	apperrors "github.com/target/seclab-api/internal/errors"
)

// maxFileBytes caps how much of a file Read returns.
const maxFileBytes = 1 << 20

// sampleFiles are written by SetupSample, keyed by slash-separated relative path.
var sampleFiles = []struct {
	path    string
	content string
}{
	{path: "hello.txt", content: "Hello from safe file!\n"},
	{path: "notes/readme.md", content: "# Readme\nSample readme file"},
}

// FileServiceOptions groups dependencies for FileService.
type FileServiceOptions struct {
	BaseDir string       // Required: directory files are served from
	Logger  *slog.Logger // Optional
}

// FileService reads files by user-supplied name from a single base directory.
type FileService struct {
	base   string
	root   *os.Root
	logger *slog.Logger
}

// FileContent is the result of a successful read.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewFileService creates the base directory if needed and opens it as a root.
func NewFileService(opts FileServiceOptions) (*FileService, error) {
	if opts.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	base, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	if mkErr := os.MkdirAll(base, 0o750); mkErr != nil {
		return nil, fmt.Errorf("create base directory: %w", mkErr)
	}
	root, err := os.OpenRoot(base)
	if err != nil {
		return nil, fmt.Errorf("open base directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{base: base, root: root, logger: logger.With("component", "file_service")}, nil
}

// Close releases the base directory handle.
func (s *FileService) Close() error {
	return s.root.Close()
}

// Read returns the content of name relative to the base directory.
// Malformed names are Validation errors, escapes are Forbidden and missing files NotFound.
func (s *FileService) Read(ctx context.Context, name string) (*FileContent, error) {
	full, err := pathsafe.ResolveSafe(s.base, name)
	if err != nil {
		return nil, s.pathError(ctx, name, err)
	}
	rel, err := filepath.Rel(s.base, full)
	if err != nil {
		return nil, apperrors.Forbidden("access denied")
	}

	f, err := s.root.Open(rel)
	if err != nil {
		return nil, s.openError(ctx, rel, err)
	}
	defer func() {
		// read-only handle; close failure is ignored
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, apperrors.NotFound("file not found")
	}

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, apperrors.ValidationField("filename", "file is too large")
	}
	return &FileContent{Path: filepath.ToSlash(rel), Content: string(data)}, nil
}

// SetupSample (re)writes the sample files and returns their relative paths.
func (s *FileService) SetupSample(ctx context.Context) ([]string, error) {
	written := make([]string, 0, len(sampleFiles))
	for _, sf := range sampleFiles {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		rel := filepath.FromSlash(sf.path)
		if dir := filepath.Dir(rel); dir != "." {
			if err := s.root.Mkdir(dir, 0o750); err != nil && !errors.Is(err, fs.ErrExist) {
				return written, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := s.writeFile(rel, sf.content); err != nil {
			return written, err
		}
		written = append(written, sf.path)
	}
	s.logger.InfoContext(ctx, "sample files written", "count", len(written))
	return written, nil
}

func (s *FileService) writeFile(rel, content string) error {
	f, err := s.root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", rel, err)
	}
	return nil
}

func (s *FileService) pathError(ctx context.Context, name string, err error) error {
	switch {
	case errors.Is(err, pathsafe.ErrTraversal):
		s.logger.WarnContext(ctx, "path traversal rejected", "filename", name)
		return apperrors.Forbidden("access denied")
	case errors.Is(err, pathsafe.ErrInvalid):
		return apperrors.ValidationField("filename", "invalid filename")
	default:
		return fmt.Errorf("resolve path: %w", err)
	}
}

func (s *FileService) openError(ctx context.Context, rel string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return apperrors.NotFound("file not found")
	}
	// os.Root refuses names that escape through symlinks.
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && !errors.Is(err, fs.ErrPermission) {
		s.logger.WarnContext(ctx, "file open rejected", "path", rel, "error", err)
		return apperrors.Forbidden("access denied")
	}
	return fmt.Errorf("open file: %w", err)
}
