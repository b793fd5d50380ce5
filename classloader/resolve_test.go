/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMethodWalksSuperclassChain(t *testing.T) {
	l := NewLoader()
	mustAdd(t, l, classSpec{
		name:        "java/lang/Object",
		accessFlags: accPublic,
		methods: []methodSpec{
			{name: "toString", desc: "()Ljava/lang/String;", access: accPublic, code: []byte{0xb0}, maxStack: 1, maxLocals: 1},
		},
	})
	mustAdd(t, l, classSpec{
		name:        "com/example/Base",
		superName:   "java/lang/Object",
		accessFlags: accPublic,
	})
	sub := mustAdd(t, l, classSpec{
		name:        "com/example/Sub",
		superName:   "com/example/Base",
		accessFlags: accPublic,
	})

	m, err := l.ResolveMethod("com/example/Sub", "toString", "()Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", m.Owner.Name)

	selected := SelectMethod(m, sub)
	assert.Equal(t, "java/lang/Object", selected.Owner.Name) // no override present
}

func TestSelectMethodPicksOverride(t *testing.T) {
	l := NewLoader()
	mustAdd(t, l, classSpec{
		name:        "java/lang/Object",
		accessFlags: accPublic,
		methods: []methodSpec{
			{name: "toString", desc: "()Ljava/lang/String;", access: accPublic, code: []byte{0xb0}, maxStack: 1, maxLocals: 1},
		},
	})
	sub := mustAdd(t, l, classSpec{
		name:        "com/example/Sub",
		superName:   "java/lang/Object",
		accessFlags: accPublic,
		methods: []methodSpec{
			{name: "toString", desc: "()Ljava/lang/String;", access: accPublic, code: []byte{0x12, 0xb0}, maxStack: 1, maxLocals: 1},
		},
	})

	resolvedAgainstObject, err := l.ResolveMethod("java/lang/Object", "toString", "()Ljava/lang/String;")
	require.NoError(t, err)

	selected := SelectMethod(resolvedAgainstObject, sub)
	assert.Same(t, sub, selected.Owner)
}

func TestResolveInterfaceMethodFallsBackToDefaultMethod(t *testing.T) {
	l := NewLoader()
	mustAdd(t, l, classSpec{
		name:        "java/lang/Object",
		accessFlags: accPublic,
	})
	mustAdd(t, l, classSpec{
		name:        "com/example/Greeter",
		accessFlags: accPublic | accInterface | accAbstract,
		methods: []methodSpec{
			{name: "greet", desc: "()V", access: accPublic, code: []byte{0xb1}, maxStack: 0, maxLocals: 1}, // default method: has code
		},
	})
	mustAdd(t, l, classSpec{
		name:        "com/example/C",
		superName:   "java/lang/Object",
		interfaces:  []string{"com/example/Greeter"},
		accessFlags: accPublic,
	})

	m, err := l.ResolveMethod("com/example/C", "greet", "()V")
	require.NoError(t, err)
	assert.Equal(t, "com/example/Greeter", m.Owner.Name)
}

func TestResolveMethodUnknownFails(t *testing.T) {
	l := NewLoader()
	mustAdd(t, l, classSpec{name: "java/lang/Object", accessFlags: accPublic})
	_, err := l.ResolveMethod("java/lang/Object", "noSuchMethod", "()V")
	assert.Error(t, err)
}
