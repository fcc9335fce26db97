package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// 与 libp2p 其他实现编码结果逐字节一致
func TestCircuitRelay_WireBytes(t *testing.T) {
	msg := &CircuitRelay{
		Type: CircuitRelay_HOP,
		DstPeer: &CircuitRelay_Peer{
			Id:    []byte{0xAA},
			Addrs: [][]byte{{0x04}},
		},
	}
	data, err := msg.Marshal()
	require.NoError(t, err)

	want := []byte{
		0x08, 0x01, // type = HOP
		0x1a, 0x06, // dstPeer, len 6
		0x0a, 0x01, 0xAA, // id
		0x12, 0x01, 0x04, // addrs[0]
	}
	assert.Equal(t, want, data)

	status := &CircuitRelay{Type: CircuitRelay_STATUS, Code: CircuitRelay_SUCCESS}
	data, err = status.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x03, 0x20, 0x64}, data)
}

func TestCircuitRelay_RoundTrip(t *testing.T) {
	msg := &CircuitRelay{
		Type:    CircuitRelay_STOP,
		SrcPeer: &CircuitRelay_Peer{Id: []byte("src"), Addrs: [][]byte{[]byte("a1"), []byte("a2")}},
		DstPeer: &CircuitRelay_Peer{Id: []byte("dst")},
		Code:    CircuitRelay_STOP_RELAY_REFUSED,
	}
	data, err := msg.Marshal()
	require.NoError(t, err)

	got := &CircuitRelay{}
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, msg, got)
}

func TestCircuitRelay_EmptyMessage(t *testing.T) {
	data, err := (&CircuitRelay{}).Marshal()
	require.NoError(t, err)
	assert.Empty(t, data)

	got := &CircuitRelay{Type: CircuitRelay_HOP}
	require.NoError(t, got.Unmarshal(nil))
	assert.Equal(t, CircuitRelay_Type(0), got.GetType(), "Unmarshal 应重置旧值")
}

func TestCircuitRelay_UnknownFieldsIgnored(t *testing.T) {
	var data []byte
	data = protowire.AppendTag(data, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(CircuitRelay_CAN_HOP))
	data = protowire.AppendTag(data, 15, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))
	data = protowire.AppendTag(data, 16, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 42)

	got := &CircuitRelay{}
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, CircuitRelay_CAN_HOP, got.Type)
}

func TestCircuitRelay_Malformed(t *testing.T) {
	t.Run("截断的长度前缀", func(t *testing.T) {
		got := &CircuitRelay{}
		assert.Error(t, got.Unmarshal([]byte{0x1a, 0x10, 0x0a}))
	})

	t.Run("截断的 varint", func(t *testing.T) {
		got := &CircuitRelay{}
		assert.Error(t, got.Unmarshal([]byte{0x08, 0x80}))
	})

	t.Run("Peer 缺少 id", func(t *testing.T) {
		var peer []byte
		peer = protowire.AppendTag(peer, fieldPeerAddrs, protowire.BytesType)
		peer = protowire.AppendBytes(peer, []byte{0x04})

		var data []byte
		data = protowire.AppendTag(data, fieldSrcPeer, protowire.BytesType)
		data = protowire.AppendBytes(data, peer)

		got := &CircuitRelay{}
		assert.ErrorIs(t, got.Unmarshal(data), ErrMissingPeerID)
	})
}

func TestEnumString(t *testing.T) {
	assert.Equal(t, "HOP_NO_CONN_TO_DST", CircuitRelay_HOP_NO_CONN_TO_DST.String())
	assert.Equal(t, "CAN_HOP", CircuitRelay_CAN_HOP.String())
	assert.Equal(t, "999", CircuitRelay_Status(999).String())
	assert.Equal(t, "7", CircuitRelay_Type(7).String())
}

func TestNilGetters(t *testing.T) {
	var m *CircuitRelay
	assert.Nil(t, m.GetSrcPeer())
	assert.Nil(t, m.GetDstPeer().GetId())
	assert.Nil(t, m.GetDstPeer().GetAddrs())
	assert.Equal(t, CircuitRelay_Status(0), m.GetCode())
	assert.Equal(t, "<nil>", m.String())
}
