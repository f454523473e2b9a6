package outbox

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gfranca/papo/internal/chat"
)

const fallbackMIME = "application/octet-stream"

// ReadAttachment converts a local file into its transmittable form:
// base64 payload plus media type declared from the extension. This is
// the one local I/O step that must complete before an envelope exists;
// on error nothing is composed and nothing is sent.
func ReadAttachment(path string) (*chat.FileAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = fallbackMIME
	}

	return &chat.FileAttachment{
		Data: base64.StdEncoding.EncodeToString(data),
		Name: filepath.Base(path),
		MIME: mediaType,
		Size: int64(len(data)),
	}, nil
}
