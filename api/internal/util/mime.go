package util

import (
	"net/http"
	"strings"
)

// SniffMimeHTTP recognises the image formats the analysis API accepts and
// falls back to net/http content sniffing for everything else.
func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP" {
		return "image/webp"
	}
	if len(b) == 0 {
		return "application/octet-stream"
	}
	ct := http.DetectContentType(b)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// PickMIME prefers the declared type and sniffs the bytes only when nothing
// was declared.
func PickMIME(declared string, data []byte) string {
	if d := strings.TrimSpace(declared); d != "" {
		return d
	}
	return SniffMimeHTTP(data)
}
