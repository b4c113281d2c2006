package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyGIF is the smallest valid GIF89a: a 1x1 transparent image. Enough
// bytes for mimetype's sniffer to detect image/gif.
var tinyGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

func multipartUpload(t *testing.T, fieldFiles map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range fieldFiles {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAdmitsValidGIFAndQueuesJob(t *testing.T) {
	app, _, db := newTestApp(t)

	body, contentType := multipartUpload(t, map[string][]byte{"clip.gif": tinyGIF})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded struct {
		Jobs []uploadedJobRef `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Jobs, 1)
	assert.Equal(t, "clip.gif", decoded.Jobs[0].Filename)

	got, err := db.Get(req.Context(), decoded.Jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "clip.gif", got.OriginalFilename)
}

func TestUploadRejectsNonImageContent(t *testing.T) {
	app, _, _ := newTestApp(t)

	body, contentType := multipartUpload(t, map[string][]byte{"notes.txt": []byte("just some text, not an image at all")})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded struct {
		Errors []uploadError `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "notes.txt", decoded.Errors[0].Filename)
}

func TestUploadRejectsEmptyFileList(t *testing.T) {
	app, _, _ := newTestApp(t)

	body, contentType := multipartUpload(t, map[string][]byte{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadPartialBatchSucceedsWithMixedFiles(t *testing.T) {
	app, _, _ := newTestApp(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"good.gif": tinyGIF,
		"bad.txt":  []byte("definitely not an image, just plain text content here"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded struct {
		Jobs   []uploadedJobRef `json:"jobs"`
		Errors []uploadError    `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Jobs, 1)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "good.gif", decoded.Jobs[0].Filename)
	assert.Equal(t, "bad.txt", decoded.Errors[0].Filename)
}
