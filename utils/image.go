package utils

import "bytes"

const OctetStream = "application/octet-stream"

var (
	pngSignature  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegSignature = []byte{0xFF, 0xD8}
	gifSignature  = []byte{0x47, 0x49, 0x46}
)

// SniffImageType picks the Content-Type of a stored proof from its leading
// bytes. Only PNG, JPEG and GIF are recognised.
func SniffImageType(b []byte) string {
	switch {
	case bytes.HasPrefix(b, pngSignature):
		return "image/png"
	case bytes.HasPrefix(b, jpegSignature):
		return "image/jpeg"
	case bytes.HasPrefix(b, gifSignature):
		return "image/gif"
	}
	return OctetStream
}

// ImageExtension is the file extension matching SniffImageType.
func ImageExtension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}
