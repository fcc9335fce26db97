package types

import (
	"errors"
	"testing"
)

func mustPeerID(t *testing.T, seed string) PeerID {
	t.Helper()
	id, err := PeerIDFromPublicKey([]byte(seed))
	if err != nil {
		t.Fatalf("PeerIDFromPublicKey(%q) error = %v", seed, err)
	}
	return id
}

func TestPeerID(t *testing.T) {
	id := mustPeerID(t, "peer-a")

	t.Run("RoundTripString", func(t *testing.T) {
		parsed, err := ParsePeerID(id.String())
		if err != nil {
			t.Fatalf("ParsePeerID() error = %v", err)
		}
		if parsed != id {
			t.Errorf("ParsePeerID() = %q, want %q", parsed, id)
		}
	})

	t.Run("RoundTripBytes", func(t *testing.T) {
		decoded, err := PeerIDFromBytes(id.Bytes())
		if err != nil {
			t.Fatalf("PeerIDFromBytes() error = %v", err)
		}
		if decoded != id {
			t.Errorf("PeerIDFromBytes() = %q, want %q", decoded, id)
		}
	})

	t.Run("ShortString", func(t *testing.T) {
		short := id.ShortString()
		if len(short) != 8 {
			t.Errorf("ShortString() = %q, want 8 chars", short)
		}
		if EmptyPeerID.ShortString() != "" {
			t.Error("空 ID 的 ShortString 应为空")
		}
	})

	t.Run("IsEmpty", func(t *testing.T) {
		if !EmptyPeerID.IsEmpty() {
			t.Error("EmptyPeerID.IsEmpty() = false, want true")
		}
		if id.IsEmpty() {
			t.Error("id.IsEmpty() = true, want false")
		}
	})
}

func TestPeerIDFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"empty", nil, ErrEmptyPeerID},
		{"garbage", []byte{0xff, 0xff, 0xff}, ErrInvalidPeerID},
		{"truncated", []byte{0x12, 0x20, 0x01}, ErrInvalidPeerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PeerIDFromBytes(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("PeerIDFromBytes() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParsePeerID_Invalid(t *testing.T) {
	inputs := []string{"", "0OIl", "111"}
	for _, in := range inputs {
		if _, err := ParsePeerID(in); err == nil {
			t.Errorf("ParsePeerID(%q) expected error", in)
		}
	}
}
