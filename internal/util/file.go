package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ValidateMimeType sniffs the content of reader and checks it against
// allowedTypes, which hold MIME prefixes such as "video/" or full types.
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	mt, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", err
	}

	mimeType := mt.String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, nil
		}
	}

	return mimeType, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
}

// ExtensionFor returns the usual file extension of a sniffed MIME type.
func ExtensionFor(mimeType string) string {
	if mt := mimetype.Lookup(mimeType); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}

// AudioFormat returns the short format name used when sending audio to the
// generative service.
func AudioFormat(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"), strings.Contains(mimeType, "wave"):
		return "wav"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "mp3"
	}
	return ""
}
