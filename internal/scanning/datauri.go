package scanning

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURI is an image embedded inline as data:<mime>;base64,<payload>
type DataURI struct {
	MIMEType string
	payload  string
}

// NewDataURI encodes raw bytes as a data URI
func NewDataURI(mimeType string, data []byte) DataURI {
	return DataURI{
		MIMEType: mimeType,
		payload:  base64.StdEncoding.EncodeToString(data),
	}
}

// ParseDataURI parses a base64 data URI. The payload is kept verbatim so that
// String returns the input unchanged.
func ParseDataURI(s string) (DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: payload must be base64 encoded", ErrInvalidDataURI)
	}
	if mimeType == "" {
		return DataURI{}, fmt.Errorf("%w: missing MIME type", ErrInvalidDataURI)
	}
	if payload == "" {
		return DataURI{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return DataURI{}, fmt.Errorf("%w: decoding payload: %v", ErrInvalidDataURI, err)
	}
	return DataURI{MIMEType: mimeType, payload: payload}, nil
}

// Bytes returns the decoded payload
func (d DataURI) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(d.payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrInvalidDataURI, err)
	}
	return data, nil
}

// Base64 returns the encoded payload without the header
func (d DataURI) Base64() string {
	return d.payload
}

// IsImage reports whether the MIME type is an image type
func (d DataURI) IsImage() bool {
	return IsImageMIMEType(d.MIMEType)
}

func (d DataURI) String() string {
	return "data:" + d.MIMEType + ";base64," + d.payload
}

// IsImageMIMEType reports whether mimeType names an image
func IsImageMIMEType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
