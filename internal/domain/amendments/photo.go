package amendments

import (
	"path"
	"strings"
)

// PhotoKey is the object key for a photo of an amendment.
func PhotoKey(amendmentID ID, photoID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return path.Join("amendments", string(amendmentID), "photos", photoID+ext)
}
