package llm

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestEncodeAttachment(t *testing.T) {
	t.Parallel()

	t.Run("bytes with sniffed type", func(t *testing.T) {
		content, err := EncodeAttachment(AttachmentFromBytes(pngHeader, "chart", ""))
		require.NoError(t, err)
		file, ok := content.(*FileContent)
		require.True(t, ok)
		assert.Equal(t, "image/png", file.MimeType)
		assert.True(t, file.IsImage())
		assert.Equal(t, "chart", file.Filename)
		assert.Equal(t, "data:image/png;base64,"+file.Base64(), file.DataURL())
	})

	t.Run("parameters dropped", func(t *testing.T) {
		content, err := EncodeAttachment(AttachmentFromBytes([]byte("a,b\n1,2\n"), "data.csv", "text/csv; charset=utf-8"))
		require.NoError(t, err)
		assert.Equal(t, "text/csv", content.(*FileContent).MimeType)
	})

	t.Run("image", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})

		content, err := EncodeAttachment(AttachmentFromImage(img))
		require.NoError(t, err)
		file := content.(*FileContent)
		assert.Equal(t, "image/png", file.MimeType)
		assert.Equal(t, "image.png", file.Filename)
		assert.Equal(t, pngHeader[:8], file.Data[:8])
	})

	t.Run("path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("remember the milk"), 0o600))

		content, err := EncodeAttachment(AttachmentFromPath(path))
		require.NoError(t, err)
		file := content.(*FileContent)
		assert.Equal(t, "notes.txt", file.Filename)
		assert.Equal(t, "text/plain", file.MimeType)
		assert.Equal(t, "remember the milk", string(file.Data))

		_, err = EncodeAttachment(AttachmentFromPath(filepath.Join(t.TempDir(), "missing.txt")))
		assert.ErrorContains(t, err, "failed to read attachment")
	})

	t.Run("html becomes markdown", func(t *testing.T) {
		html := []byte("<html><body><h1>Report</h1><p>Sales are <strong>up</strong>.</p></body></html>")
		content, err := EncodeAttachment(AttachmentFromBytes(html, "report.html", ""))
		require.NoError(t, err)
		text, ok := content.(*TextContent)
		require.True(t, ok)
		assert.Contains(t, text.Text, "# Report")
		assert.Contains(t, text.Text, "**up**")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := EncodeAttachment(Attachment{Name: "nothing"})
		assert.ErrorIs(t, err, &Error{Code: ErrCodeInvalidRequest})
	})
}
