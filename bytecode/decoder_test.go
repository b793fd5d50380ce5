package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeSimpleSequence covers spec.md §8 scenario 1: iconst_1; istore_1;
// iload_1; ireturn.
func TestDecodeSimpleSequence(t *testing.T) {
	body := []byte{0x04, 0x3C, 0x1B, 0xAC}
	insts, err := Decode(body)
	require.NoError(t, err)
	require.Len(t, insts, 4)

	wantOffsets := []int{0, 1, 2, 3}
	total := 0
	for i, inst := range insts {
		assert.Equal(t, wantOffsets[i], inst.Offset)
		total += inst.Size
	}
	assert.Equal(t, len(body), total, "total decoded size must equal input length")
}

// TestDecodeTableSwitch covers spec.md §8 scenario 2.
func TestDecodeTableSwitch(t *testing.T) {
	body := make([]byte, 27) // 1 (leading nop) + 26 (tableswitch)
	body[0] = byte(OpNop)
	body[1] = byte(OpTableSwitch)
	// 1 padding byte at offset 2, operands start at offset 3
	putI32(body, 3, 0x20)  // default
	putI32(body, 7, 0)     // low
	putI32(body, 11, 2)    // high
	putI32(body, 15, 0x10) // offsets[0]
	putI32(body, 19, 0x18) // offsets[1]
	putI32(body, 23, 0x20) // offsets[2]

	insts, err := Decode(body)
	require.NoError(t, err)
	require.Len(t, insts, 2)

	ts := insts[1]
	assert.Equal(t, 1, ts.Offset)
	assert.Equal(t, 26, ts.Size)
	require.NotNil(t, ts.Switch)
	assert.True(t, ts.Switch.IsTable)
	assert.EqualValues(t, 0x20, ts.Switch.Default)
	assert.EqualValues(t, 0, ts.Switch.Low)
	assert.EqualValues(t, 2, ts.Switch.High)
	assert.Equal(t, []int32{0x10, 0x18, 0x20}, ts.Switch.Offsets)
}

func TestDecodeWideIinc(t *testing.T) {
	body := []byte{byte(OpWide), byte(OpIInc), 0x01, 0x02, 0xFF, 0xFF}
	insts, err := Decode(body)
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, OpIInc, insts[0].Op)
	assert.True(t, insts[0].Wide)
	assert.EqualValues(t, 0x0102, insts[0].U2)
	assert.EqualValues(t, -1, insts[0].Branch)
	assert.Equal(t, 6, insts[0].Size)
}

func TestDecodeRejectsMalformedLookupSwitch(t *testing.T) {
	body := make([]byte, 10)
	body[0] = byte(OpLookupSwitch)
	// leave padding/header truncated to force an error
	_, err := Decode(body)
	assert.Error(t, err)
}

func TestDecodeRejectsInvokeInterfaceZeroCount(t *testing.T) {
	body := []byte{byte(OpInvokeIface), 0x00, 0x01, 0x00, 0x00}
	_, err := Decode(body)
	assert.Error(t, err)
}

func TestIteratorIsRepeatable(t *testing.T) {
	body := []byte{0x04, 0x3C, 0x1B, 0xAC}
	a, err := Decode(body)
	require.NoError(t, err)
	b, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func putI32(b []byte, at int, v int32) {
	b[at] = byte(v >> 24)
	b[at+1] = byte(v >> 16)
	b[at+2] = byte(v >> 8)
	b[at+3] = byte(v)
}
