/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import "encoding/binary"

// cpEntryKind distinguishes the handful of constant-pool entry shapes the
// test builder needs to emit; a tiny mirror of the real tags in cpool.go.
type cpEntryKind int

const (
	cpkUtf8 cpEntryKind = iota
	cpkClass
	cpkNameAndType
)

type pendingCPEntry struct {
	kind cpEntryKind
	text string // cpkUtf8
	a, b uint16 // cpkClass: a=utf8 idx; cpkNameAndType: a=name idx, b=desc idx
}

// classBuilder assembles minimal, well-formed class-file bytes for tests,
// avoiding a dependency on real .class fixtures or a javac toolchain.
// Grounded on the teacher pack's table-driven constant-pool construction
// in codeCheck_test.go/formatCheck_test.go, generalized into a builder
// since those tests hand-wrote single CPool structs rather than raw bytes.
type classBuilder struct {
	entries []pendingCPEntry // index 0 unused, mirrors real CP numbering
	buf     []byte
}

func newClassBuilder() *classBuilder {
	return &classBuilder{entries: []pendingCPEntry{{}}}
}

func (b *classBuilder) utf8(s string) uint16 {
	for i, e := range b.entries {
		if i != 0 && e.kind == cpkUtf8 && e.text == s {
			return uint16(i)
		}
	}
	b.entries = append(b.entries, pendingCPEntry{kind: cpkUtf8, text: s})
	return uint16(len(b.entries) - 1)
}

func (b *classBuilder) classRef(name string) uint16 {
	nameIdx := b.utf8(name)
	for i, e := range b.entries {
		if i != 0 && e.kind == cpkClass && e.a == nameIdx {
			return uint16(i)
		}
	}
	b.entries = append(b.entries, pendingCPEntry{kind: cpkClass, a: nameIdx})
	return uint16(len(b.entries) - 1)
}

func (b *classBuilder) put2(v uint16) { b.buf = binary.BigEndian.AppendUint16(b.buf, v) }
func (b *classBuilder) put4(v uint32) { b.buf = binary.BigEndian.AppendUint32(b.buf, v) }
func (b *classBuilder) put1(v uint8)  { b.buf = append(b.buf, v) }

type fieldSpec struct {
	name, desc string
	access     uint16
}

type methodSpec struct {
	name, desc string
	access     uint16
	code       []byte // nil => no Code attribute (abstract/native)
	maxStack   uint16
	maxLocals  uint16
}

type classSpec struct {
	name        string
	superName   string // "" for none (java/lang/Object itself)
	interfaces  []string
	accessFlags uint16
	fields      []fieldSpec
	methods     []methodSpec
}

// buildClass emits a complete, minimal class file for spec. The class's
// own CONSTANT_Class/Utf8 entries, plus whatever its fields'/methods'
// names and descriptors need, are allocated into the builder's constant
// pool; method bodies are embedded as literal, already-assembled bytecode.
func buildClass(spec classSpec) []byte {
	b := newClassBuilder()

	thisIdx := b.classRef(spec.name)
	var superIdx uint16
	if spec.superName != "" {
		superIdx = b.classRef(spec.superName)
	}
	ifaceIdxs := make([]uint16, len(spec.interfaces))
	for i, ifn := range spec.interfaces {
		ifaceIdxs[i] = b.classRef(ifn)
	}

	type fieldEnc struct {
		access, name, desc uint16
	}
	fieldEncs := make([]fieldEnc, len(spec.fields))
	for i, f := range spec.fields {
		fieldEncs[i] = fieldEnc{access: f.access, name: b.utf8(f.name), desc: b.utf8(f.desc)}
	}

	type methodEnc struct {
		access, name, desc  uint16
		code                []byte
		maxStack, maxLocals uint16
	}
	methodEncs := make([]methodEnc, len(spec.methods))
	var codeAttrNameIdx uint16
	hasCode := false
	for _, m := range spec.methods {
		if m.code != nil {
			hasCode = true
		}
	}
	if hasCode {
		codeAttrNameIdx = b.utf8("Code")
	}
	for i, m := range spec.methods {
		methodEncs[i] = methodEnc{access: m.access, name: b.utf8(m.name), desc: b.utf8(m.desc), code: m.code, maxStack: m.maxStack, maxLocals: m.maxLocals}
	}

	b.put4(classMagic)
	b.put2(0)  // minor
	b.put2(61) // major

	b.put2(uint16(len(b.entries)))
	for i := 1; i < len(b.entries); i++ {
		e := b.entries[i]
		switch e.kind {
		case cpkUtf8:
			b.put1(cpUTF8)
			b.put2(uint16(len(e.text)))
			b.buf = append(b.buf, e.text...)
		case cpkClass:
			b.put1(cpClassRef)
			b.put2(e.a)
		case cpkNameAndType:
			b.put1(cpNameAndType)
			b.put2(e.a)
			b.put2(e.b)
		}
	}

	b.put2(spec.accessFlags)
	b.put2(thisIdx)
	b.put2(superIdx)

	b.put2(uint16(len(ifaceIdxs)))
	for _, idx := range ifaceIdxs {
		b.put2(idx)
	}

	b.put2(uint16(len(fieldEncs)))
	for _, f := range fieldEncs {
		b.put2(f.access)
		b.put2(f.name)
		b.put2(f.desc)
		b.put2(0) // attributes_count
	}

	b.put2(uint16(len(methodEncs)))
	for _, m := range methodEncs {
		b.put2(m.access)
		b.put2(m.name)
		b.put2(m.desc)
		if m.code == nil {
			b.put2(0) // attributes_count
			continue
		}
		b.put2(1) // attributes_count: Code only
		b.put2(codeAttrNameIdx)

		var codeBody []byte
		codeBody = binary.BigEndian.AppendUint16(codeBody, m.maxStack)
		codeBody = binary.BigEndian.AppendUint16(codeBody, m.maxLocals)
		codeBody = binary.BigEndian.AppendUint32(codeBody, uint32(len(m.code)))
		codeBody = append(codeBody, m.code...)
		codeBody = binary.BigEndian.AppendUint16(codeBody, 0) // exception_table_length
		codeBody = binary.BigEndian.AppendUint16(codeBody, 0) // attributes_count

		b.put4(uint32(len(codeBody)))
		b.buf = append(b.buf, codeBody...)
	}

	b.put2(0) // class attributes_count
	return b.buf
}
