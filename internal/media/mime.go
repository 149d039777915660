package media

import (
	"net/http"
	"path/filepath"
	"strings"
)

// extensionMIMEs maps common audio/video file extensions to MIME types that
// http.DetectContentType cannot identify from magic bytes alone.
var extensionMIMEs = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// DetectMIME resolves a MIME type from the declared value, the payload's
// magic bytes, and the file extension, in that order of preference. The
// declared value wins unless it is empty or a generic octet-stream.
func DetectMIME(declared, name string, data []byte) string {
	declared = normalizeMIME(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	if len(data) > 0 {
		if sniffed := normalizeMIME(http.DetectContentType(data)); sniffed != "application/octet-stream" && sniffed != "text/plain" {
			return sniffed
		}
	}

	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if m, ok := extensionMIMEs[ext]; ok {
			return m
		}
	}

	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

// IsAudioVideo reports whether the MIME type names an audio or video payload.
func IsAudioVideo(mime string) bool {
	mime = normalizeMIME(mime)
	return strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/")
}

// normalizeMIME strips parameters ("; charset=...") and lowercases the type.
func normalizeMIME(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
