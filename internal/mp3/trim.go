// Package mp3 trims the framing around fetched mp3 fragments so they can be
// concatenated into a single playable stream.
package mp3

import (
	"bytes"
	"errors"
)

const (
	// SyncByte opens every MPEG audio frame header.
	SyncByte = 0xFF

	// TagSize is the fixed length of a trailing ID3v1 block.
	TagSize = 128
)

// ErrNoSyncMarker is returned when a fragment holds no frame sync byte.
var ErrNoSyncMarker = errors.New("mp3: no sync marker found")

var tagMagic = []byte("TAG")

// SyncOffset returns the index of the first sync byte in b, or -1.
func SyncOffset(b []byte) int {
	return bytes.IndexByte(b, SyncByte)
}

// TrimLeading drops every byte before the first sync byte.
func TrimLeading(b []byte) ([]byte, error) {
	k := SyncOffset(b)
	if k < 0 {
		return nil, ErrNoSyncMarker
	}
	return b[k:], nil
}

// HasTrailingTag reports whether b ends with an ID3v1 block.
func HasTrailingTag(b []byte) bool {
	if len(b) < TagSize {
		return false
	}
	tail := b[len(b)-TagSize:]
	return bytes.EqualFold(tail[:len(tagMagic)], tagMagic)
}

// StripTrailingTag removes a trailing ID3v1 block if present.
func StripTrailingTag(b []byte) []byte {
	if !HasTrailingTag(b) {
		return b
	}
	return b[:len(b)-TagSize]
}

// Clean prepares a fragment for concatenation: the header in front of the first
// frame and any trailing ID3v1 block are removed.
func Clean(b []byte) ([]byte, error) {
	trimmed, err := TrimLeading(b)
	if err != nil {
		return nil, err
	}
	return StripTrailingTag(trimmed), nil
}
