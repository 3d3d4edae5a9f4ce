package tags

import "cadence/internal/storage"

const mimeUnknown = "application/octet-stream"

var mimeByExtension = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".m4b":  "audio/mp4",
	".mp4":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".aif":  "audio/aiff",
	".aiff": "audio/aiff",
	".wma":  "audio/x-ms-wma",
}

// MIMEType infers the container type from a file name's extension.
func MIMEType(name string) string {
	if value, ok := mimeByExtension[storage.Extension(name)]; ok {
		return value
	}
	return mimeUnknown
}
