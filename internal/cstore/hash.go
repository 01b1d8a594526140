package cstore

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	fnvOffset32 = 0x811c9dc5
	fnvPrime32  = 0x01000193
)

// Hash returns the 32-bit FNV-1a digest of s as 8 lowercase hex digits.
// The input is folded one UTF-16 code unit at a time, so non-ASCII text
// hashes the same as in stores written by the desktop app.
func Hash(s string) string {
	h := uint32(fnvOffset32)
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x80 {
			h ^= uint32(c)
			h *= fnvPrime32
			continue
		}
		for _, unit := range utf16.Encode([]rune(s[i:])) {
			h ^= uint32(unit)
			h *= fnvPrime32
		}
		break
	}
	return fmt.Sprintf("%08x", h)
}

// HashName returns the shadow name for one path segment.
func HashName(segment string) string {
	return Hash(segment) + Ext
}

// LineHashes hashes every "\n"-separated line of content, including a
// trailing empty line when content ends with a newline.
func LineHashes(content string) []string {
	lines := strings.Split(content, "\n")
	hashes := make([]string, len(lines))
	for i, line := range lines {
		hashes[i] = Hash(line)
	}
	return hashes
}
