package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldPrimitives(t *testing.T) {
	cases := map[string]Primitive{
		"Z": Boolean, "B": Byte, "C": Char, "S": Short,
		"I": Int, "J": Long, "F": Float, "D": Double, "V": Void,
	}
	for text, prim := range cases {
		d, err := ParseField(text)
		require.NoError(t, err)
		assert.Equal(t, TagPrimitive, d.Tag)
		assert.Equal(t, prim, d.Prim)
	}
}

func TestParseFieldObjectAndArray(t *testing.T) {
	d, err := ParseField("Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, TagObject, d.Tag)
	assert.Equal(t, "java/lang/String", d.ClassName)

	d, err = ParseField("[[I")
	require.NoError(t, err)
	assert.Equal(t, TagArray, d.Tag)
	assert.Equal(t, TagArray, d.Component.Tag)
	assert.Equal(t, Int, d.Component.Component.Prim)
}

func TestParseFieldRejectsMalformed(t *testing.T) {
	badInputs := []string{"", "L", "Ljava/lang/String", "I extra", "Q", "L;"}
	for _, in := range badInputs {
		_, err := ParseField(in)
		assert.Errorf(t, err, "expected error for input %q", in)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("([Ljava/lang/String;)V")
	require.NoError(t, err)
	require.Len(t, m.Params, 1)
	assert.Equal(t, TagArray, m.Params[0].Tag)
	assert.Equal(t, "java/lang/String", m.Params[0].Component.ClassName)
	assert.Equal(t, Void, m.Return.Prim)
}

func TestParseMethodRejectsVoidParam(t *testing.T) {
	_, err := ParseMethod("(V)V")
	assert.Error(t, err)
}

func TestDescriptorRoundTrip(t *testing.T) {
	texts := []string{
		"Z", "B", "C", "S", "I", "J", "F", "D", "V",
		"Ljava/lang/Object;",
		"[I",
		"[[Ljava/lang/String;",
	}
	for _, text := range texts {
		d, err := ParseField(text)
		require.NoError(t, err)
		assert.Equal(t, text, Write(d), "Write(Parse(%q)) should round-trip", text)
	}
}

func TestMethodRoundTrip(t *testing.T) {
	texts := []string{
		"()V",
		"(I)I",
		"([Ljava/lang/String;)V",
		"(IJLjava/lang/Object;[D)Z",
	}
	for _, text := range texts {
		m, err := ParseMethod(text)
		require.NoError(t, err)
		assert.Equal(t, text, WriteMethod(m))
	}
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, 1, SizeOf(NewPrimitive(Boolean)))
	assert.Equal(t, 1, SizeOf(NewPrimitive(Byte)))
	assert.Equal(t, 2, SizeOf(NewPrimitive(Char)))
	assert.Equal(t, 4, SizeOf(NewPrimitive(Int)))
	assert.Equal(t, 8, SizeOf(NewPrimitive(Long)))
	assert.Equal(t, 0, SizeOf(NewPrimitive(Void)))
	assert.Equal(t, 8, SizeOf(NewObject("java/lang/Object")))
	assert.Equal(t, 8, SizeOf(NewArray(NewPrimitive(Int))))
}

func TestIsReference(t *testing.T) {
	assert.False(t, IsReference(NewPrimitive(Int)))
	assert.True(t, IsReference(NewObject("java/lang/Object")))
	assert.True(t, IsReference(NewArray(NewPrimitive(Int))))
}

func TestPrettyPrint(t *testing.T) {
	d, err := ParseField("[Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, "java.lang.String[]", Pretty(d))

	m, err := ParseMethod("([Ljava/lang/String;)V")
	require.NoError(t, err)
	assert.Equal(t, "(java.lang.String[]) -> void", PrettyMethod(m))
}
