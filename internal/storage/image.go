package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"
)

// Candidate image upload limits.
const MaxImageBytes = 1 << 20 // 1MB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var (
	ErrImageTooLarge    = errors.New("image exceeds 1MB limit")
	ErrInvalidImageType = errors.New("only JPEG, PNG, and WebP images are allowed")
)

// ValidateImage checks size and content type of an uploaded candidate image.
// The type is sniffed from the bytes rather than trusted from the request.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return "", ErrInvalidImageType
	}
	return contentType, nil
}

// ImageKey builds a unique object key for a candidate image, namespaced by
// room: {roomID}/{timestamp}-{random}-{filename}.
func ImageKey(roomID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}

	var buf [4]byte
	suffix := "000000"
	if _, err := rand.Read(buf[:]); err == nil {
		suffix = hex.EncodeToString(buf[:])
	}
	return fmt.Sprintf("%s/%d-%s-%s", roomID, time.Now().UnixMilli(), suffix, base)
}
