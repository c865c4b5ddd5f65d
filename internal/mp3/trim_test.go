package mp3

import (
	"bytes"
	"errors"
	"testing"
)

func TestTrimLeading(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		k    int
	}{
		{"at_start", []byte{0xFF, 0xFB, 0x90, 0x00}, 0},
		{"after_header", []byte{'I', 'D', '3', 0x03, 0x00, 0xFF, 0xFB, 0x01}, 5},
		{"last_byte", []byte{0x00, 0x01, 0x02, 0xFF}, 3},
		{"first_of_many", []byte{0x10, 0xFF, 0x20, 0xFF}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrimLeading(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.in[tt.k:]) {
				t.Errorf("TrimLeading = %x, want %x", got, tt.in[tt.k:])
			}
			if len(got) != len(tt.in)-tt.k {
				t.Errorf("len = %d, want %d", len(got), len(tt.in)-tt.k)
			}
		})
	}
}

func TestTrimLeadingNoSync(t *testing.T) {
	for _, in := range [][]byte{nil, {}, []byte("no frames here")} {
		_, err := TrimLeading(in)
		if !errors.Is(err, ErrNoSyncMarker) {
			t.Errorf("TrimLeading(%q) err = %v, want ErrNoSyncMarker", in, err)
		}
	}
}

func TestSyncOffset(t *testing.T) {
	if got := SyncOffset([]byte{1, 2, 0xFF}); got != 2 {
		t.Errorf("SyncOffset = %d, want 2", got)
	}
	if got := SyncOffset([]byte{1, 2, 3}); got != -1 {
		t.Errorf("SyncOffset = %d, want -1", got)
	}
}

func withTag(audio []byte, magic string) []byte {
	tag := make([]byte, TagSize)
	copy(tag, magic)
	return append(append([]byte{}, audio...), tag...)
}

func TestStripTrailingTag(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x44, 0x00}

	if got := StripTrailingTag(withTag(audio, "TAG")); !bytes.Equal(got, audio) {
		t.Errorf("StripTrailingTag = %x, want %x", got, audio)
	}
	if got := StripTrailingTag(withTag(audio, "tag")); !bytes.Equal(got, audio) {
		t.Error("lowercase tag magic should be recognised")
	}

	plain := withTag(audio, "XYZ")
	if got := StripTrailingTag(plain); !bytes.Equal(got, plain) {
		t.Error("data without tag should be returned unchanged")
	}
	if got := StripTrailingTag(audio); !bytes.Equal(got, audio) {
		t.Error("short data should be returned unchanged")
	}
}

func TestCleanRemovesBothEnds(t *testing.T) {
	header := []byte{'I', 'D', '3', 0x04, 0x00, 0x00}
	audio := []byte{0xFF, 0xF3, 0x44, 0xC4, 0x00, 0x11}
	in := withTag(append(append([]byte{}, header...), audio...), "TAG")

	got, err := Clean(in)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Clean = %x, want %x", got, audio)
	}
}

func TestCleanNoSync(t *testing.T) {
	if _, err := Clean([]byte("garbage")); !errors.Is(err, ErrNoSyncMarker) {
		t.Errorf("Clean err = %v, want ErrNoSyncMarker", err)
	}
}
