package validation

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

// ResolveMimeType returns the declared type when the client sent a useful
// one, otherwise derives it from the file extension and finally from the
// content itself.
func ResolveMimeType(name, declared string, data []byte) string {
	if declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			declared = parsed
		}
		declared = strings.ToLower(declared)
		if declared != octetStream {
			return declared
		}
	}

	if byExt := mimeTypeFromPath(name); byExt != "" {
		return byExt
	}

	if len(data) == 0 {
		return octetStream
	}
	detected := mimetype.Detect(data).String()
	if parsed, _, err := mime.ParseMediaType(detected); err == nil {
		return parsed
	}
	return detected
}

func mimeTypeFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

// DetectImageType sniffs the content type of decoded result bytes.
func DetectImageType(data []byte) string {
	return mimetype.Detect(data).String()
}
