package types

import "testing"

func TestProtocolID(t *testing.T) {
	tests := []struct {
		proto   ProtocolID
		name    string
		version string
	}{
		{"/libp2p/circuit/relay/0.1.0", "/libp2p/circuit/relay", "0.1.0"},
		{"/noise/1.0.0", "/noise", "1.0.0"},
		{"/simple", "/simple", "simple"},
	}

	for _, tt := range tests {
		t.Run(string(tt.proto), func(t *testing.T) {
			if got := tt.proto.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
			if got := tt.proto.Version(); got != tt.version {
				t.Errorf("Version() = %q, want %q", got, tt.version)
			}
		})
	}

	if !ProtocolID("").IsEmpty() {
		t.Error("IsEmpty() = false for empty")
	}
}
