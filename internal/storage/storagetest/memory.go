// Package storagetest provides an in-memory storage.Provider for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"cadence/internal/storage"
)

// MemoryProvider is a synthetic filesystem keyed by URI. Parents are derived
// by trimming the last "/" segment, so both "/Music/a.mp3" and
// "content://media/tree/Music/a.mp3" style keys work.
type MemoryProvider struct {
	mu           sync.Mutex
	files        map[string][]byte
	dirs         map[string]struct{}
	listErrors   map[string]error
	denied       map[string]struct{}
	hideKinds    bool
	requiresCopy bool
	listCalls    map[string]int
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		files:      make(map[string][]byte),
		dirs:       make(map[string]struct{}),
		listErrors: make(map[string]error),
		denied:     make(map[string]struct{}),
		listCalls:  make(map[string]int),
	}
}

func (p *MemoryProvider) AddDir(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addDirLocked(normalize(uri))
}

func (p *MemoryProvider) AddFile(uri string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(uri)
	p.files[key] = append([]byte(nil), data...)
	if parent, ok := parentOf(key); ok {
		p.addDirLocked(parent)
	}
}

// Remove deletes a file or a directory subtree.
func (p *MemoryProvider) Remove(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(uri)
	delete(p.files, key)
	delete(p.dirs, key)

	prefix := key + "/"
	for file := range p.files {
		if strings.HasPrefix(file, prefix) {
			delete(p.files, file)
		}
	}
	for dir := range p.dirs {
		if strings.HasPrefix(dir, prefix) {
			delete(p.dirs, dir)
		}
	}
}

// FailList makes every List of uri return err.
func (p *MemoryProvider) FailList(uri string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErrors[normalize(uri)] = err
}

// Deny makes RequestAccess and List of uri fail with a permission error.
func (p *MemoryProvider) Deny(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied[normalize(uri)] = struct{}{}
}

// HideKinds reports every entry as storage.KindUnknown, as scoped
// providers do.
func (p *MemoryProvider) HideKinds(hide bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hideKinds = hide
}

func (p *MemoryProvider) RequireCopy(required bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requiresCopy = required
}

func (p *MemoryProvider) ListCalls(uri string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls[normalize(uri)]
}

func (p *MemoryProvider) RequestAccess(ctx context.Context, hint string) (storage.FolderHandle, error) {
	if err := ctx.Err(); err != nil {
		return storage.FolderHandle{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(hint)
	if key == "" {
		return storage.FolderHandle{}, &storage.AccessError{Reason: "no folder selected"}
	}
	if _, denied := p.denied[key]; denied {
		return storage.FolderHandle{}, &storage.AccessError{URI: key, Reason: "permission denied"}
	}
	if _, ok := p.dirs[key]; !ok {
		return storage.FolderHandle{}, &storage.AccessError{URI: key, Reason: "folder does not exist", Err: fs.ErrNotExist}
	}

	return storage.FolderHandle{URI: key, Name: storage.DisplayName(key)}, nil
}

func (p *MemoryProvider) List(ctx context.Context, uri string) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(uri)
	p.listCalls[key]++

	if err, ok := p.listErrors[key]; ok {
		return nil, err
	}
	if _, denied := p.denied[key]; denied {
		return nil, fmt.Errorf("list %s: %w", key, fs.ErrPermission)
	}
	if _, isFile := p.files[key]; isFile {
		return nil, fmt.Errorf("list %s: %w", key, storage.ErrNotDirectory)
	}
	if _, ok := p.dirs[key]; !ok {
		return nil, fmt.Errorf("list %s: %w", key, fs.ErrNotExist)
	}

	entries := make([]storage.Entry, 0)
	for dir := range p.dirs {
		if parent, ok := parentOf(dir); ok && parent == key {
			entries = append(entries, p.entryLocked(dir, storage.KindDir, storage.UnknownSize))
		}
	}
	for file, data := range p.files {
		if parent, ok := parentOf(file); ok && parent == key {
			entries = append(entries, p.entryLocked(file, storage.KindFile, int64(len(data))))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URI < entries[j].URI
	})

	return entries, nil
}

func (p *MemoryProvider) Exists(ctx context.Context, uri string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(uri)
	if _, ok := p.files[key]; ok {
		return true, nil
	}
	_, ok := p.dirs[key]
	return ok, nil
}

func (p *MemoryProvider) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.files[normalize(uri)]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", uri, fs.ErrNotExist)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *MemoryProvider) CopyToLocal(ctx context.Context, handle storage.FileHandle, destPath string) error {
	source, err := p.Open(ctx, handle.URI)
	if err != nil {
		return err
	}
	defer source.Close()

	return storage.WriteFileAtomic(destPath, source)
}

func (p *MemoryProvider) entryLocked(uri string, kind storage.EntryKind, size int64) storage.Entry {
	if p.hideKinds {
		kind = storage.KindUnknown
	}
	return storage.Entry{
		URI:          uri,
		Name:         storage.DisplayName(uri),
		Kind:         kind,
		Size:         size,
		RequiresCopy: p.requiresCopy,
	}
}

func (p *MemoryProvider) addDirLocked(key string) {
	for key != "" {
		if _, ok := p.dirs[key]; ok {
			return
		}
		p.dirs[key] = struct{}{}

		parent, ok := parentOf(key)
		if !ok {
			return
		}
		key = parent
	}
}

func normalize(uri string) string {
	trimmed := strings.TrimSpace(uri)
	if len(trimmed) > 1 {
		trimmed = strings.TrimRight(trimmed, "/")
	}
	return trimmed
}

func parentOf(key string) (string, bool) {
	index := strings.LastIndex(key, "/")
	if index < 0 {
		return "", false
	}

	parent := key[:index]
	if parent == "" {
		if key == "/" {
			return "", false
		}
		return "/", true
	}
	if strings.HasSuffix(parent, ":/") || strings.HasSuffix(parent, ":") {
		return "", false
	}

	return parent, true
}

var _ storage.Provider = (*MemoryProvider)(nil)
