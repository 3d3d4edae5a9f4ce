package storage

import (
	"context"
	"errors"
	"iter"
	"path"
	"sort"
	"strings"
)

// DefaultAudioExtensions lists the extensions the walker treats as audio.
var DefaultAudioExtensions = []string{
	".aac", ".aif", ".aiff", ".alac", ".flac", ".m4a", ".mp3", ".oga", ".ogg", ".opus", ".wav", ".wma",
}

// DefaultIgnoredExtensions lists extensions known not to be audio or directories.
// Entries with these extensions are never descended into.
var DefaultIgnoredExtensions = []string{
	".bmp", ".cue", ".db", ".doc", ".gif", ".ini", ".jpeg", ".jpg", ".log", ".lrc", ".m3u", ".m3u8",
	".md", ".mkv", ".mov", ".mp4", ".nfo", ".pdf", ".pls", ".png", ".sfv", ".txt", ".webp", ".zip",
}

// ExtensionTable drives the walker's file/directory guess for entries whose
// kind the provider cannot report.
type ExtensionTable struct {
	audio   map[string]struct{}
	ignored map[string]struct{}
}

func NewExtensionTable(audio []string, ignored []string) ExtensionTable {
	return ExtensionTable{
		audio:   extensionSet(audio),
		ignored: extensionSet(ignored),
	}
}

func (t ExtensionTable) IsAudio(name string) bool {
	_, ok := t.audio[Extension(name)]
	return ok
}

func (t ExtensionTable) IsIgnored(name string) bool {
	_, ok := t.ignored[Extension(name)]
	return ok
}

// Extension returns the lower-cased extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(path.Ext(DisplayName(name)))
}

type entryAction int

const (
	actionSkip entryAction = iota
	actionYield
	actionDescend
)

func (t ExtensionTable) classify(entry Entry) entryAction {
	name := entry.Name
	if name == "" {
		name = DisplayName(entry.URI)
	}

	switch entry.Kind {
	case KindDir:
		return actionDescend
	case KindFile:
		if t.IsAudio(name) {
			return actionYield
		}
		return actionSkip
	}

	switch {
	case t.IsAudio(name):
		return actionYield
	case t.IsIgnored(name):
		return actionSkip
	default:
		// Extension-less or unrecognised: a folder such as "Vol. 2" is
		// more likely than an unknown file type.
		return actionDescend
	}
}

type EnumerateOptions struct {
	Recursive  bool
	Extensions ExtensionTable
}

// Enumerate lazily walks folder and yields audio file handles in name order.
// Listing failures are yielded as *EnumerateError and the walk continues
// with the next sibling; a failed root ends the walk. When ctx is cancelled
// the walk yields ctx.Err() once and stops.
func Enumerate(ctx context.Context, provider Provider, folder FolderHandle, options EnumerateOptions) iter.Seq2[FileHandle, error] {
	return func(yield func(FileHandle, error) bool) {
		visited := make(map[string]struct{})

		var walk func(uri string, root bool) bool
		walk = func(uri string, root bool) bool {
			if err := ctx.Err(); err != nil {
				yield(FileHandle{}, err)
				return false
			}

			if _, seen := visited[uri]; seen {
				return true
			}
			visited[uri] = struct{}{}

			entries, err := provider.List(ctx, uri)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(FileHandle{}, ctxErr)
					return false
				}
				if !root && errors.Is(err, ErrNotDirectory) {
					return true
				}
				return yield(FileHandle{}, &EnumerateError{URI: uri, Root: root, Err: err})
			}

			sort.SliceStable(entries, func(i, j int) bool {
				return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
			})

			for _, entry := range entries {
				switch options.Extensions.classify(entry) {
				case actionYield:
					name := entry.Name
					if name == "" {
						name = DisplayName(entry.URI)
					}
					if !yield(FileHandle{URI: entry.URI, Name: name, Size: entry.Size, RequiresCopy: entry.RequiresCopy}, nil) {
						return false
					}
				case actionDescend:
					if !options.Recursive {
						continue
					}
					if !walk(entry.URI, false) {
						return false
					}
				}
			}

			return true
		}

		walk(folder.URI, true)
	}
}

func extensionSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if !strings.HasPrefix(value, ".") {
			value = "." + value
		}
		set[value] = struct{}{}
	}
	return set
}
