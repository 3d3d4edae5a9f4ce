// Package storage abstracts folder permission grants and directory listing
// over local paths or platform-scoped storage handles. Callers only see
// opaque handles (URI + display name); nothing here touches the catalog.
package storage

import (
	"context"
	"io"
)

type EntryKind int

const (
	KindUnknown EntryKind = iota
	KindFile
	KindDir
)

// UnknownSize marks handles whose provider cannot report a byte size.
const UnknownSize int64 = -1

// Entry is one child returned by Provider.List. Scoped providers frequently
// cannot tell files from directories, in which case Kind is KindUnknown and
// the walker falls back to extension sniffing.
type Entry struct {
	URI  string
	Name string
	Kind EntryKind
	Size int64
	// RequiresCopy is propagated to the FileHandle built from this entry.
	RequiresCopy bool
}

type FolderHandle struct {
	URI  string
	Name string
}

type FileHandle struct {
	URI  string
	Name string
	Size int64
	// RequiresCopy is set when the handle only supports streaming reads and
	// must be materialised locally before random access.
	RequiresCopy bool
}

type Provider interface {
	// RequestAccess grants (or re-validates) access to a folder. A denial is
	// returned as *AccessError wrapping ErrPermissionDenied.
	RequestAccess(ctx context.Context, hint string) (FolderHandle, error)
	// List returns the direct children of uri. Listing something that is not
	// a directory returns an error wrapping ErrNotDirectory.
	List(ctx context.Context, uri string) ([]Entry, error)
	Exists(ctx context.Context, uri string) (bool, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
	CopyToLocal(ctx context.Context, handle FileHandle, destPath string) error
}

// LocalPather is implemented by providers whose handles can map to a plain
// filesystem path, which lets path-only readers skip a copy.
type LocalPather interface {
	LocalPath(uri string) (string, bool)
}
