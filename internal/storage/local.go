package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider serves plain filesystem paths and file:// URIs. Handles it
// returns use cleaned absolute paths as their URI.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) RequestAccess(ctx context.Context, hint string) (FolderHandle, error) {
	if err := ctx.Err(); err != nil {
		return FolderHandle{}, err
	}

	trimmed := strings.TrimSpace(hint)
	if trimmed == "" {
		return FolderHandle{}, &AccessError{Reason: "no folder selected"}
	}

	localPath, ok := LocalPathFromURI(trimmed)
	if !ok {
		return FolderHandle{}, &AccessError{URI: trimmed, Reason: "unsupported uri"}
	}

	absolutePath, err := filepath.Abs(localPath)
	if err != nil {
		return FolderHandle{}, &AccessError{URI: trimmed, Reason: "resolve path", Err: err}
	}

	info, err := os.Stat(absolutePath)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return FolderHandle{}, &AccessError{URI: absolutePath, Reason: "folder does not exist", Err: err}
		case errors.Is(err, fs.ErrPermission):
			return FolderHandle{}, &AccessError{URI: absolutePath, Reason: "permission denied", Err: err}
		default:
			return FolderHandle{}, &AccessError{URI: absolutePath, Reason: "stat folder", Err: err}
		}
	}
	if !info.IsDir() {
		return FolderHandle{}, &AccessError{URI: absolutePath, Reason: "not a directory", Err: ErrNotDirectory}
	}

	handle, err := os.Open(absolutePath)
	if err != nil {
		return FolderHandle{}, &AccessError{URI: absolutePath, Reason: "permission denied", Err: err}
	}
	defer handle.Close()

	if _, err := handle.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return FolderHandle{}, &AccessError{URI: absolutePath, Reason: "folder is not readable", Err: err}
	}

	return FolderHandle{URI: absolutePath, Name: filepath.Base(absolutePath)}, nil
}

func (p *LocalProvider) List(ctx context.Context, uri string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	localPath, ok := LocalPathFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("list %s: unsupported uri", uri)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", localPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list %s: %w", localPath, ErrNotDirectory)
	}

	dirEntries, err := os.ReadDir(localPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", localPath, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		entryPath := filepath.Join(localPath, dirEntry.Name())
		entry := Entry{
			URI:  entryPath,
			Name: dirEntry.Name(),
			Kind: KindFile,
			Size: UnknownSize,
		}

		entryInfo, err := dirEntry.Info()
		if dirEntry.Type()&fs.ModeSymlink != 0 {
			entryInfo, err = os.Stat(entryPath)
		}
		if err != nil {
			// Dangling links and entries removed mid-listing.
			entry.Kind = KindUnknown
			entries = append(entries, entry)
			continue
		}

		if entryInfo.IsDir() {
			entry.Kind = KindDir
		} else {
			entry.Size = entryInfo.Size()
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (p *LocalProvider) Exists(ctx context.Context, uri string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	localPath, ok := LocalPathFromURI(uri)
	if !ok {
		return false, fmt.Errorf("exists %s: unsupported uri", uri)
	}

	_, err := os.Stat(localPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("stat %s: %w", localPath, err)
}

func (p *LocalProvider) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	localPath, ok := LocalPathFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("open %s: unsupported uri", uri)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}

	return file, nil
}

func (p *LocalProvider) CopyToLocal(ctx context.Context, handle FileHandle, destPath string) error {
	source, err := p.Open(ctx, handle.URI)
	if err != nil {
		return err
	}
	defer source.Close()

	return WriteFileAtomic(destPath, source)
}

func (p *LocalProvider) LocalPath(uri string) (string, bool) {
	return LocalPathFromURI(uri)
}

// WriteFileAtomic streams source into a temporary sibling of destPath and
// renames it into place.
func WriteFileAtomic(destPath string, source io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(destPath), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := io.Copy(temp, source); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("copy to %s: %w", destPath, err)
	}

	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename to %s: %w", destPath, err)
	}

	return nil
}
