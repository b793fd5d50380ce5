/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package hprofdump

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/classloader"
	"corevm/gc"
	"corevm/ref"
)

// readUvarint mirrors randall77-hprof/read/parser.go's own varint reads,
// reimplemented here (rather than imported, since that example lives in a
// separate module under _examples/) to check a dump's shape byte-for-byte.
func readUvarint(t *testing.T, r *bytes.Reader) uint64 {
	t.Helper()
	v, err := binary.ReadUvarint(r)
	require.NoError(t, err)
	return v
}

func readBytes(t *testing.T, r *bytes.Reader) []byte {
	t.Helper()
	n := readUvarint(t, r)
	buf := make([]byte, n)
	_, err := r.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestDumpEmitsWellFormedRecordStream(t *testing.T) {
	class := &classloader.ClassObject{
		Kind: classloader.KindClass, Name: "java/lang/Object",
		FieldAreaSize: 8, InstanceSize: 24, GCMask: []int{0},
	}
	heap := gc.NewHeap(4096, gc.NewFrameStack(), nil)
	addr, err := heap.Allocate(class, class.FieldAreaSize)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewWriter(&out).Dump(heap, 8))

	data := out.Bytes()
	require.True(t, strings.HasPrefix(string(data), header))
	r := bytes.NewReader(data[len(header):])

	require.Equal(t, uint64(tagParams), readUvarint(t, r))
	assert.Equal(t, uint64(0), readUvarint(t, r)) // byte order
	assert.Equal(t, uint64(8), readUvarint(t, r)) // ptr size
	readUvarint(t, r) // hchan size
	readUvarint(t, r) // heap start
	readUvarint(t, r) // heap end
	readUvarint(t, r) // the char
	readBytes(t, r)   // experiment string
	readUvarint(t, r) // ncpu

	require.Equal(t, uint64(tagType), readUvarint(t, r))
	typAddr := readUvarint(t, r)
	assert.Equal(t, uint64(class.InstanceSize), readUvarint(t, r))
	assert.Equal(t, []byte("java/lang/Object"), readBytes(t, r))
	efaceByte, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0), efaceByte)
	assert.Equal(t, uint64(fieldKindPtr), readUvarint(t, r))
	assert.Equal(t, uint64(0), readUvarint(t, r)) // field offset
	assert.Equal(t, uint64(fieldKindEol), readUvarint(t, r))

	require.Equal(t, uint64(tagObject), readUvarint(t, r))
	assert.Equal(t, uint64(addr), readUvarint(t, r))
	assert.Equal(t, typAddr, readUvarint(t, r))
	assert.Equal(t, uint64(typeKindObject), readUvarint(t, r))
	assert.NotZero(t, readUvarint(t, r)) // size

	require.Equal(t, uint64(tagEOF), readUvarint(t, r))
	assert.Equal(t, 0, r.Len())
}

// stubRootProvider reports a single fixed address as a root, standing in
// for a real root source (the string interner, a native frame) to exercise
// Dump's tagOtherRoot emission without reaching into gc's unexported frame
// internals from this external test package.
type stubRootProvider struct{ addr ref.Addr }

func (s stubRootProvider) AddRootObjects(visit func(ref.Addr))         { visit(s.addr) }
func (s stubRootProvider) AddRootsForRelocation(visit func(*ref.Addr)) {}

func TestDumpReportsProvidedRootsAsOtherRoots(t *testing.T) {
	class := &classloader.ClassObject{Kind: classloader.KindClass, Name: "java/lang/Object"}
	heap := gc.NewHeap(4096, gc.NewFrameStack(), nil)
	addr, err := heap.Allocate(class, 0)
	require.NoError(t, err)
	heap.RegisterRootProvider(stubRootProvider{addr: addr})

	var out bytes.Buffer
	require.NoError(t, NewWriter(&out).Dump(heap, 8))
	assert.Contains(t, out.String(), "gc root")
}
