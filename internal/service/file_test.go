package service

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/seclab-api/internal/errors"
)

func newFileService(t *testing.T) (*FileService, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "files")
	svc, err := NewFileService(FileServiceOptions{BaseDir: base})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	_, err = svc.SetupSample(context.Background())
	require.NoError(t, err)
	return svc, base
}

func TestFileService_SetupSampleAndRead(t *testing.T) {
	svc, base := newFileService(t)
	ctx := context.Background()

	got, err := svc.Read(ctx, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", got.Path)
	assert.Equal(t, "Hello from safe file!\n", got.Content)

	got, err = svc.Read(ctx, `notes\readme.md`)
	require.NoError(t, err)
	assert.Equal(t, "notes/readme.md", got.Path)
	assert.Equal(t, "# Readme\nSample readme file", got.Content)

	got, err = svc.Read(ctx, "notes/../hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", got.Path)

	// Running setup twice overwrites in place.
	require.NoError(t, os.WriteFile(filepath.Join(base, "hello.txt"), []byte("changed"), 0o600))
	files, err := svc.SetupSample(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello.txt", "notes/readme.md"}, files)
	got, err = svc.Read(ctx, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello from safe file!\n", got.Content)
}

func TestFileService_Read_Rejections(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		check func(error) bool
	}{
		{name: "parent traversal", input: "../secret.txt", check: apperrors.IsForbidden},
		{name: "encoded traversal", input: "%2e%2e/%2e%2e/etc/passwd", check: apperrors.IsForbidden},
		{name: "backslash traversal", input: `..\..\etc\passwd`, check: apperrors.IsForbidden},
		{name: "absolute path", input: "/etc/passwd", check: apperrors.IsForbidden},
		{name: "dot", input: ".", check: apperrors.IsForbidden},
		{name: "empty", input: "   ", check: apperrors.IsValidation},
		{name: "nul byte", input: "hello.txt%00.png", check: apperrors.IsValidation},
		{name: "bad characters", input: "hello?.txt", check: apperrors.IsValidation},
		{name: "missing", input: "nope.txt", check: apperrors.IsNotFound},
		{name: "directory", input: "notes", check: apperrors.IsNotFound},
		{name: "through a file", input: "hello.txt/x", check: apperrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Read(ctx, tt.input)
			assert.Nil(t, got)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestFileService_Read_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
	svc, base := newFileService(t)

	outside := filepath.Join(filepath.Dir(base), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "link.txt")))

	got, err := svc.Read(context.Background(), "link.txt")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err), "unexpected error %v", err)
}

func TestFileService_Read_TooLarge(t *testing.T) {
	svc, base := newFileService(t)
	big := strings.Repeat("a", maxFileBytes+1)
	require.NoError(t, os.WriteFile(filepath.Join(base, "big.txt"), []byte(big), 0o600))

	_, err := svc.Read(context.Background(), "big.txt")
	assert.True(t, apperrors.IsValidation(err))
}

func TestNewFileService_RequiresBaseDir(t *testing.T) {
	_, err := NewFileService(FileServiceOptions{})
	require.Error(t, err)
}
