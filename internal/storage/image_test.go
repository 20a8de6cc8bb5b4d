package storage

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// Minimal valid file headers; DetectContentType only needs the magic bytes.
var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF")
	webpHeader = []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
)

func TestValidateImageAcceptsKnownTypes(t *testing.T) {
	for name, data := range map[string][]byte{
		"png":  pngHeader,
		"jpeg": jpegHeader,
		"webp": webpHeader,
	} {
		contentType, err := ValidateImage(data)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !strings.HasPrefix(contentType, "image/") {
			t.Fatalf("%s: unexpected content type %q", name, contentType)
		}
	}
}

func TestValidateImageRejectsOtherTypes(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00")
	if _, err := ValidateImage(gif); !errors.Is(err, ErrInvalidImageType) {
		t.Fatalf("expected ErrInvalidImageType for gif, got %v", err)
	}

	text := []byte("just some text")
	if _, err := ValidateImage(text); !errors.Is(err, ErrInvalidImageType) {
		t.Fatalf("expected ErrInvalidImageType for text, got %v", err)
	}
}

func TestValidateImageRejectsOversized(t *testing.T) {
	data := append([]byte{}, pngHeader...)
	data = append(data, bytes.Repeat([]byte{0}, MaxImageBytes)...)

	if _, err := ValidateImage(data); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestValidateImageRejectsEmpty(t *testing.T) {
	if _, err := ValidateImage(nil); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestImageKeyIsRoomScoped(t *testing.T) {
	key := ImageKey("room-1", "portrait.png")
	if !strings.HasPrefix(key, "room-1/") {
		t.Fatalf("expected room prefix, got %q", key)
	}
	if !strings.HasSuffix(key, "-portrait.png") {
		t.Fatalf("expected filename suffix, got %q", key)
	}
}

func TestImageKeyStripsPaths(t *testing.T) {
	for _, filename := range []string{"../../etc/passwd", `..\..\evil.png`, ""} {
		key := ImageKey("room-1", filename)
		if strings.Contains(strings.TrimPrefix(key, "room-1/"), "/") {
			t.Fatalf("key leaks path separators: %q", key)
		}
		if strings.Contains(key, "..") {
			t.Fatalf("key contains traversal: %q", key)
		}
	}
}

func TestImageKeysAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := ImageKey("room-1", "same.png")
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}
