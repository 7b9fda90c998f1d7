package helpers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formContext(t *testing.T, field, filename string, content []byte) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPut, "/", &body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	return c
}

func TestOpenImage(t *testing.T) {
	f, err := OpenImage(formContext(t, "image", "Phones.PNG", []byte("png")), "image", 1024)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestOpenImageErrors(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		content  []byte
		want     error
	}{
		{"missing", "", "", nil, ErrImageMissing},
		{"wrong field", "file", "a.png", []byte("x"), ErrImageMissing},
		{"too large", "image", "a.png", bytes.Repeat([]byte("x"), 2048), ErrImageTooLarge},
		{"not an image", "image", "notes.txt", []byte("x"), ErrImageUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenImage(formContext(t, tt.field, tt.filename, tt.content), "image", 1024)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSplitFilename(t *testing.T) {
	name, ext := SplitFilename("/uploads/Phones.JPEG")
	assert.Equal(t, "Phones", name)
	assert.Equal(t, ".jpeg", ext)
}
