package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000/evidence/amendments/a/photos/p.jpg",
		ObjectURL("http://minio:9000/", "evidence", "amendments/a/photos/p.jpg"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("x.JPG"))
	assert.Equal(t, "image/png", ContentTypeFor("a/b.png"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("noext"))
}
