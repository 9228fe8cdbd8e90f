package extract

import (
	"bytes"
	"encoding/base64"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/constants"
)

// Document is the immutable upload buffer shared read-only by every extractor.
type Document struct {
	Data      []byte
	Size      int64
	MediaType string
	FileName  string
}

// NewDocument wraps data as a PDF document buffer.
func NewDocument(fileName string, data []byte) Document {
	return Document{
		Data:      data,
		Size:      int64(len(data)),
		MediaType: constants.MediaTypePDF,
		FileName:  fileName,
	}
}

// RasterImage is one page image destined for inference.
type RasterImage struct {
	Data      []byte
	MIMEType  string
	PageIndex int
}

// Base64Len is the encoded size of the image payload.
func (r RasterImage) Base64Len() int {
	return base64.StdEncoding.EncodedLen(len(r.Data))
}

// DataURL renders the image as an inline data URL.
func (r RasterImage) DataURL() string {
	return "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte{0x89, 0x50}
)

// SniffImageType classifies by magic bytes, defaulting to JPEG.
func SniffImageType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return constants.MediaTypePNG
	case bytes.HasPrefix(data, jpegMagic):
		return constants.MediaTypeJPEG
	default:
		return constants.MediaTypeJPEG
	}
}

// EncodedLen is the base64 length of n raw bytes.
func EncodedLen(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}
