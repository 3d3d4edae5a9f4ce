package storage

import (
	"net/url"
	"path/filepath"
	"strings"
)

const (
	SchemeFile    = "file"
	SchemeContent = "content"
)

// Scheme returns the lower-cased URI scheme, or "" for plain paths.
// Windows drive letters are not schemes.
func Scheme(uri string) string {
	index := strings.Index(uri, "://")
	if index <= 1 {
		if strings.HasPrefix(strings.ToLower(uri), SchemeContent+":") {
			return SchemeContent
		}
		return ""
	}

	scheme := uri[:index]
	for _, char := range scheme {
		isLetter := (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')
		isOther := (char >= '0' && char <= '9') || char == '+' || char == '-' || char == '.'
		if !isLetter && !isOther {
			return ""
		}
	}

	return strings.ToLower(scheme)
}

func IsContentURI(uri string) bool {
	return Scheme(uri) == SchemeContent
}

func IsRemoteURI(uri string) bool {
	switch Scheme(uri) {
	case "http", "https":
		return true
	default:
		return false
	}
}

func IsLocalURI(uri string) bool {
	switch Scheme(uri) {
	case "", SchemeFile:
		return strings.TrimSpace(uri) != ""
	default:
		return false
	}
}

// LocalPathFromURI resolves plain paths and file:// URIs to a cleaned path.
func LocalPathFromURI(uri string) (string, bool) {
	trimmed := strings.TrimSpace(uri)
	switch Scheme(trimmed) {
	case "":
		if trimmed == "" {
			return "", false
		}
		return filepath.Clean(trimmed), true
	case SchemeFile:
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Path == "" {
			return "", false
		}
		return filepath.Clean(filepath.FromSlash(parsed.Path)), true
	default:
		return "", false
	}
}

// DisplayName derives a human readable file name from a handle URI. Scoped
// document ids such as "primary%3AMusic%2Fsong.mp3" are decoded first.
func DisplayName(uri string) string {
	decoded := DecodeURI(uri)
	decoded = strings.TrimRight(decoded, "/\\")
	if index := strings.LastIndexAny(decoded, "/\\"); index >= 0 {
		decoded = decoded[index+1:]
	}
	if index := strings.LastIndex(decoded, ":"); index >= 0 {
		decoded = decoded[index+1:]
	}
	return decoded
}

// DecodeURI percent-decodes uri, returning it unchanged if it is malformed.
func DecodeURI(uri string) string {
	decoded, err := url.PathUnescape(uri)
	if err != nil {
		return uri
	}
	return decoded
}

// FolderPathSegment returns the decoded path portion that identifies a folder
// inside child URIs: the tree document path for content URIs ("Music/Rock"
// for ".../tree/primary%3AMusic%2FRock") and the cleaned path otherwise.
func FolderPathSegment(folderURI string) string {
	if path, ok := LocalPathFromURI(folderURI); ok {
		return path
	}

	decoded := DecodeURI(folderURI)
	if index := strings.Index(decoded, "/tree/"); index >= 0 {
		decoded = decoded[index+len("/tree/"):]
		if end := strings.Index(decoded, "/document/"); end >= 0 {
			decoded = decoded[:end]
		}
	} else if index := strings.Index(decoded, "://"); index >= 0 {
		decoded = decoded[index+3:]
		if slash := strings.Index(decoded, "/"); slash >= 0 {
			decoded = decoded[slash+1:]
		}
	}

	if index := strings.Index(decoded, ":"); index >= 0 {
		decoded = decoded[index+1:]
	}

	return strings.Trim(decoded, "/")
}

// WithinFolder reports whether a song URI belongs to the folder URI. Local
// paths compare by directory prefix; scoped URIs by decoded path segment.
func WithinFolder(songURI string, folderURI string) bool {
	songPath, songLocal := LocalPathFromURI(songURI)
	folderPath, folderLocal := LocalPathFromURI(folderURI)
	if songLocal && folderLocal {
		if songPath == folderPath {
			return true
		}
		prefix := strings.TrimRight(folderPath, string(filepath.Separator)) + string(filepath.Separator)
		return strings.HasPrefix(songPath, prefix)
	}

	segment := FolderPathSegment(folderURI)
	if segment == "" {
		return false
	}

	return strings.Contains(DecodeURI(songURI), segment)
}
