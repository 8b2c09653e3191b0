package storage

import (
	"bytes"
	"path"
	"strings"
)

// MIMEOctetStream is the fallback content type.
const MIMEOctetStream = "application/octet-stream"

// extensionTypes maps lowercase file extensions to MIME types.
var extensionTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".ico":  "image/x-icon",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
	// Documents
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".rtf":  "application/rtf",
	// Text
	".txt":  "text/plain",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".md":   "text/markdown",
	// Data
	".json": "application/json",
	".xml":  "application/xml",
	".js":   "application/javascript",
	// Video
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".weba": "audio/webm",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	// Archives
	".zip": "application/zip",
	".gz":  "application/gzip",
	".tar": "application/x-tar",
	".7z":  "application/x-7z-compressed",
	".rar": "application/x-rar-compressed",
}

// mimeExtensions maps MIME types to preferred file extensions.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/tiff":      ".tiff",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/csv":        ".csv",
	"text/html":       ".html",
	"application/zip": ".zip",
	"video/mp4":       ".mp4",
	"audio/mpeg":      ".mp3",
}

// magicRule matches a byte signature at a fixed offset.
type magicRule struct {
	signature []byte
	mimeType  string
	offset    int
}

// magicRules are evaluated in order; the first match wins.
var magicRules = []magicRule{
	{signature: []byte{0xFF, 0xD8, 0xFF}, mimeType: "image/jpeg"},
	{signature: []byte{0x89, 0x50, 0x4E, 0x47}, mimeType: "image/png"},
	{signature: []byte("GIF"), mimeType: "image/gif"},
	{signature: []byte("%PDF"), mimeType: "application/pdf"},
	{signature: []byte{0x50, 0x4B, 0x03, 0x04}, mimeType: "application/zip"},
	{signature: []byte{0x1F, 0x8B}, mimeType: "application/gzip"},
	{signature: []byte("WEBP"), mimeType: "image/webp", offset: 8},
}

// DetectContentType infers the MIME type of an object from its key extension,
// falling back to magic-byte sniffing and finally application/octet-stream.
func DetectContentType(key string, data []byte) string {
	if ct := ContentTypeByExtension(key); ct != "" {
		return ct
	}
	return SniffContentType(data)
}

// ContentTypeByExtension returns the MIME type for the key's extension, or "" if unknown.
func ContentTypeByExtension(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return ""
	}
	return extensionTypes[ext]
}

// SniffContentType matches the leading bytes of data against known signatures.
// Returns application/octet-stream when nothing matches.
func SniffContentType(data []byte) string {
	for _, r := range magicRules {
		end := r.offset + len(r.signature)
		if len(data) >= end && bytes.Equal(data[r.offset:end], r.signature) {
			return r.mimeType
		}
	}
	return MIMEOctetStream
}

// ExtFromContentType returns the preferred file extension for a MIME type.
// Returns empty string if the MIME type is unknown.
func ExtFromContentType(mimeType string) string {
	return mimeExtensions[normalizeMIME(mimeType)]
}

// normalizeMIME extracts the base MIME type, removing parameters like charset.
// Returns the lowercase MIME type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// matchesMIME checks if a MIME type matches any of the allowed patterns.
// Supports "*" and wildcards like "image/*".
func matchesMIME(mimeType string, allowed []string) bool {
	mimeType = normalizeMIME(mimeType)

	for _, pattern := range allowed {
		pattern = strings.TrimSpace(strings.ToLower(pattern))

		if pattern == "*" || pattern == "*/*" || mimeType == pattern {
			return true
		}

		if primary, ok := strings.CutSuffix(pattern, "/*"); ok {
			if p, _, _ := strings.Cut(mimeType, "/"); p == primary {
				return true
			}
		}
	}

	return false
}
