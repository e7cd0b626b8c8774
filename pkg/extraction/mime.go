package extraction

import (
	"path"
	"strings"
)

const defaultMIMEType = "image/jpeg"

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// MIMEType derives the image content type from the filename extension.
// Unknown extensions fall back to image/jpeg.
func MIMEType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return defaultMIMEType
}
