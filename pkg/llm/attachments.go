package llm

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Attachment is a file handed to Ask. Exactly one of Path, Data or Image is
// expected; MimeType is sniffed when empty.
type Attachment struct {
	Path     string
	Data     []byte
	Image    image.Image
	Name     string
	MimeType string
}

// AttachmentFromPath returns an attachment read from disk when encoded
func AttachmentFromPath(path string) Attachment {
	return Attachment{Path: path}
}

// AttachmentFromBytes returns an attachment for raw bytes
func AttachmentFromBytes(data []byte, name, mimeType string) Attachment {
	return Attachment{Data: data, Name: name, MimeType: mimeType}
}

// AttachmentFromImage returns an attachment encoded as PNG
func AttachmentFromImage(img image.Image) Attachment {
	return Attachment{Image: img, MimeType: "image/png"}
}

// EncodeAttachment turns an attachment into message content. HTML documents
// are converted to Markdown text; everything else becomes a FileContent.
func EncodeAttachment(a Attachment) (MessageContent, error) {
	data := a.Data
	name := a.Name
	mimeType := a.MimeType

	switch {
	case a.Image != nil:
		var buf bytes.Buffer
		if err := png.Encode(&buf, a.Image); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		data = buf.Bytes()
		mimeType = "image/png"
		if name == "" {
			name = "image.png"
		}
	case a.Path != "":
		raw, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", a.Path, err)
		}
		data = raw
		if name == "" {
			name = filepath.Base(a.Path)
		}
		if mimeType == "" {
			mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Path)))
		}
	case len(data) == 0:
		return nil, &Error{Code: ErrCodeInvalidRequest, Message: "attachment has no content", Type: "validation_error"}
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// drop parameters such as "; charset=utf-8"
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mediaType
	}

	if mimeType == "text/html" {
		markdown, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s to markdown: %w", name, err)
		}
		return NewTextContent(markdown), nil
	}

	return NewFileContentFromBytes(data, name, mimeType), nil
}
