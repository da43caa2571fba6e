package embedder

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
)

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestDownscaleKeepsSmallImages(t *testing.T) {
	data := encodeJPEG(t, 100, 60)

	out, err := Downscale(data, 200)
	if err != nil {
		t.Fatalf("Downscale() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected a fitting image to pass through unchanged")
	}
}

func TestDownscaleShrinksLargeImages(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxSize    int
		wantWidth  int
		wantHeight int
	}{
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"square", 300, 300, 150, 150, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Downscale(encodeJPEG(t, tt.width, tt.height), tt.maxSize)
			if err != nil {
				t.Fatalf("Downscale() error: %v", err)
			}

			img, _, err := image.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decoding result: %v", err)
			}
			bounds := img.Bounds()
			if bounds.Dx() != tt.wantWidth || bounds.Dy() != tt.wantHeight {
				t.Errorf("resized to %dx%d, want %dx%d",
					bounds.Dx(), bounds.Dy(), tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestDownscaleRejectsGarbage(t *testing.T) {
	if _, err := Downscale([]byte("not an image"), 100); err == nil {
		t.Fatal("expected an error for undecodable data")
	}
}
