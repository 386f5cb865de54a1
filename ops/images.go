package ops

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/llm"
)

const (
	dataImagePrefix = "data:image/"
	uploadsPrefix   = "/uploads/"
)

// loadImage vets raw and returns its bytes and MIME type.
func (e *Executor) loadImage(ctx context.Context, raw string) (llm.Image, error) {
	if err := e.guard.CheckImage(ctx, raw); err != nil {
		return llm.Image{}, err
	}
	switch {
	case strings.HasPrefix(raw, dataImagePrefix):
		return decodeDataURL(raw)
	case strings.HasPrefix(raw, uploadsPrefix):
		return e.readUpload(raw)
	}

	body, contentType, err := e.fetcher.Fetch(ctx, raw)
	if err != nil {
		return llm.Image{}, errors.ExternalServiceError("image host", err).WithDetail("url", raw)
	}
	return llm.Image{Data: body, MIMEType: imageType(contentType, body)}, nil
}

func decodeDataURL(raw string) (llm.Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return llm.Image{}, errors.Validation("Image data URLs must be base64 encoded.")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return llm.Image{}, errors.Validation("Image data URL is not valid base64.").WithCause(err)
	}
	return llm.Image{Data: data, MIMEType: strings.TrimSuffix(meta, ";base64")}, nil
}

func (e *Executor) readUpload(raw string) (llm.Image, error) {
	clean := path.Clean(raw)
	rel := strings.TrimPrefix(clean, uploadsPrefix)
	if !strings.HasPrefix(clean, uploadsPrefix) || rel == "" {
		return llm.Image{}, errors.UnsafeURL(raw, "path escapes the uploads directory")
	}
	file := filepath.Join(e.config.UploadsDir, filepath.FromSlash(rel))
	info, err := os.Stat(file)
	if err != nil {
		return llm.Image{}, errors.NotFound("upload", raw)
	}
	if info.Size() > e.config.MaxImageBytes {
		return llm.Image{}, errors.Validation(fmt.Sprintf("Image %s exceeds %d bytes", raw, e.config.MaxImageBytes))
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return llm.Image{}, errors.Internal(err)
	}
	return llm.Image{Data: data, MIMEType: imageType(mime.TypeByExtension(filepath.Ext(file)), data)}, nil
}

func imageType(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	return http.DetectContentType(data)
}
