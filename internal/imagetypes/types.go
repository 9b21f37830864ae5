package imagetypes

import (
	"path/filepath"
	"strings"
)

// Extensions maps recognized screenshot file extensions to whether they
// are indexable. Matching is case-insensitive; extensions include the
// leading dot.
var Extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// MimeTypes maps recognized extensions to their MIME types.
var MimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// IsImage reports whether the file name has a recognized image
// extension. The comparison is case-insensitive so SHOT.PNG and
// shot.png are both accepted.
func IsImage(name string) bool {
	return Extensions[strings.ToLower(filepath.Ext(name))]
}

// GetMimeType returns the MIME type for a file name, or
// "application/octet-stream" if the extension is not recognized.
func GetMimeType(name string) string {
	if mime, ok := MimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}
