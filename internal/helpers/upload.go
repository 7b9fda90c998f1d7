package helpers

import (
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

var (
	ErrImageMissing     = errors.New("image file is required")
	ErrImageTooLarge    = errors.New("image is too large")
	ErrImageUnsupported = errors.New("unsupported image type")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// OpenImage opens the single image uploaded under field. The caller closes
// the returned file.
func OpenImage(c *gin.Context, field string, maxBytes int64) (multipart.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, errors.Wrap(ErrImageMissing, err.Error())
	}
	if header.Size > maxBytes {
		return nil, ErrImageTooLarge
	}
	if _, ext := SplitFilename(header.Filename); !imageExtensions[ext] {
		return nil, errors.Wrapf(ErrImageUnsupported, "%q", header.Filename)
	}
	return header.Open()
}

// SplitFilename returns the base name of path without its extension, and the
// lower-cased extension including the dot.
func SplitFilename(path string) (name, ext string) {
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), strings.ToLower(ext)
}
