package ingestion

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/scholaris-ai/scholaris/internal/core"
)

// ExtractText converts an uploaded file into plain text. Plain text passes
// through untouched; everything else goes through docconv, which dispatches
// on the content type (PDF, DOCX, HTML, ...).
func ExtractText(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", core.ErrValidation)
	}

	if strings.HasPrefix(contentType, "text/plain") || contentType == "" {
		return string(data), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, false)
	if err != nil {
		return "", fmt.Errorf("%w: extract %s: %v", core.ErrValidation, contentType, err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return "", fmt.Errorf("%w: no text extracted from %s", core.ErrValidation, contentType)
	}
	return res.Body, nil
}
