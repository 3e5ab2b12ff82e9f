package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/heic"
)

// heicBrands are the ftyp major brands written by phone cameras
var heicBrands = map[string]bool{
	"heic": true,
	"heix": true,
	"heif": true,
	"mif1": true,
	"msf1": true,
}

// isHEICFormat looks for an ftyp box with a HEIC brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	return heicBrands[string(data[8:12])]
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func isHEIC(data []byte, mimeType string) bool {
	return isHEICFormat(data) || isHEICMimeType(mimeType)
}

// CheckImage reports ErrNotImage unless data starts with a readable header of a
// supported photo format (JPEG, PNG, GIF, HEIC or HEIF). Only the header is
// read, so this is cheap enough to run on every upload.
func CheckImage(data []byte, mimeType string) error {
	_, err := sniffImage(data, mimeType)
	return err
}

// sniffImage returns the format named by the image header
func sniffImage(data []byte, mimeType string) (string, error) {
	if !IsImageMIMEType(mimeType) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrNotImage)
	}

	if isHEIC(data, mimeType) {
		if _, err := heic.DecodeConfig(bytes.NewReader(data)); err != nil {
			return "", fmt.Errorf("%w: reading HEIC header: %w", ErrNotImage, err)
		}
		return "heic", nil
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s header: %w", ErrNotImage, mimeType, err)
	}
	return format, nil
}

func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if isHEIC(data, mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC: %w", ErrNotImage, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrNotImage, mimeType, err)
	}
	return img, nil
}

// preparePNG returns the photo as PNG bytes, the one format every provider
// accepts. converted is false when the payload already was a PNG, whatever
// its declared type.
func preparePNG(photo DataURI) (pngData []byte, converted bool, err error) {
	data, err := photo.Bytes()
	if err != nil {
		return nil, false, err
	}
	format, err := sniffImage(data, photo.MIMEType)
	if err != nil {
		return nil, false, err
	}
	if format == "png" {
		return data, false, nil
	}

	img, err := decodeImage(data, photo.MIMEType)
	if err != nil {
		return nil, false, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, false, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), true, nil
}
