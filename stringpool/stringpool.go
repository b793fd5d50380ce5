/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package stringpool is the core's string interner (spec.md §4.7): the
// side heap that canonicalizes every interned Java string by content and
// compact encoding, so two identical literals always resolve to the same
// `java.lang.String` instance. Grounded on Jacobin's own jacobin/stringPool
// package (imported throughout jacobin's classloader.go, though its
// content-keyed pool is Go-string based rather than the byte/encoding-keyed
// pool a real compact-encoded String needs), generalized here per
// original_source/src/jllvm/object/StringInterner.{hpp,cpp} for the
// encoding-selection rule and the field-offset sanity check this package
// runs at load time.
package stringpool

import (
	"encoding/binary"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"corevm/classloader"
	"corevm/descriptor"
	"corevm/gc"
	"corevm/ref"
	"corevm/trace"
	"corevm/vmerrors"
)

// CompactEncoding is which of Java's two internal string representations
// a given String instance's byte buffer is stored in (spec.md §4.7),
// mirrored from jllvm's jllvm::CompactEncoding enum.
type CompactEncoding uint8

const (
	// Latin1 is used whenever every code point fits in a byte.
	Latin1 CompactEncoding = iota
	// Utf16 stores two bytes per UTF-16 code unit, big-endian, chosen
	// whenever any code point would not survive Latin1 truncation.
	Utf16
)

func (e CompactEncoding) String() string {
	if e == Latin1 {
		return "LATIN1"
	}
	return "UTF16"
}

// The four java.lang.String instance fields checkStructure asserts
// against, and their expected byte offsets from the start of the object
// (header included) per spec.md §4.7.
const (
	valueFieldOffset      = 16
	coderFieldOffset      = 24
	hashFieldOffset       = 28
	hashIsZeroFieldOffset = 32
)

// poolKey identifies one interned string by its compact-encoded content,
// not its UTF-8 source text: two different UTF-8 strings that happen to
// compact-encode identically are, by construction, never produced (each
// UTF-8 string maps to exactly one encoding+buffer), but keying on the
// encoded form is what original_source's m_contentToStringMap does, and
// it is the representation actually stored in the String instance.
type poolKey struct {
	content  string
	encoding CompactEncoding
}

// Interner is the string pool: a loader to resolve java/lang/String and
// [B against, a heap to allocate String/byte[] instances on, and the
// content->instance map itself. One Interner per VM instance, matching
// spec.md §5's single-owner concurrency model.
type Interner struct {
	mu     sync.Mutex
	loader *classloader.Loader
	heap   *gc.Heap

	stringClass    *classloader.ClassObject
	byteArrayClass *classloader.ClassObject

	pool map[poolKey]ref.Addr
}

// NewInterner returns an Interner bound to loader and heap. Call
// LoadStringClass before Intern; callers are also expected to
// RegisterRootProvider(interner) with the heap so interned strings
// survive collection.
func NewInterner(loader *classloader.Loader, heap *gc.Heap) *Interner {
	return &Interner{
		loader: loader,
		heap:   heap,
		pool:   make(map[poolKey]ref.Addr),
	}
}

// LoadStringClass resolves java/lang/String and its byte-array component
// class, then validates java/lang/String's instance layout against the
// four fixed offsets compact encoding depends on. Any mismatch aborts the
// load with InvariantViolation — "this guards against a mismatched JDK"
// (spec.md §4.7) — grounded on StringInterner::loadStringClass +
// checkStructure.
func (in *Interner) LoadStringClass() error {
	stringClass, err := in.loader.ForName("java/lang/String")
	if err != nil {
		return err
	}
	byteArrayClass, err := in.loader.ForName("[B")
	if err != nil {
		return err
	}
	if err := checkStringLayout(stringClass); err != nil {
		return err
	}

	in.mu.Lock()
	in.stringClass = stringClass
	in.byteArrayClass = byteArrayClass
	in.mu.Unlock()

	trace.Trace("stringpool: java/lang/String layout validated (value@16 coder@24 hash@28 hashIsZero@32)")
	return nil
}

var expectedStringFields = map[string]struct {
	offset int
	desc   descriptor.Descriptor
}{
	"value":      {valueFieldOffset, descriptor.NewArray(descriptor.NewPrimitive(descriptor.Byte))},
	"coder":      {coderFieldOffset, descriptor.NewPrimitive(descriptor.Byte)},
	"hash":       {hashFieldOffset, descriptor.NewPrimitive(descriptor.Int)},
	"hashIsZero": {hashIsZeroFieldOffset, descriptor.NewPrimitive(descriptor.Boolean)},
}

// checkStringLayout is the field-offset assertion spec.md §4.7 requires:
// every non-static field of stringClass must be one of the four expected
// fields, at its expected offset and type, and all four must be present.
func checkStringLayout(stringClass *classloader.ClassObject) error {
	seen := make(map[string]bool, len(expectedStringFields))
	for _, f := range stringClass.Fields {
		if f.Static {
			continue
		}
		want, ok := expectedStringFields[f.Name]
		if !ok {
			return vmerrors.Newf(vmerrors.InvariantViolation,
				"java/lang/String has unexpected field %q", f.Name)
		}
		absOffset := classloader.HeaderSize + f.Offset
		if absOffset != want.offset || !descriptor.Equal(f.Type, want.desc) {
			return vmerrors.Newf(vmerrors.InvariantViolation,
				"java/lang/String field %q: expected offset %d type %s, got offset %d type %s",
				f.Name, want.offset, descriptor.Write(want.desc), absOffset, descriptor.Write(f.Type))
		}
		seen[f.Name] = true
	}
	for name := range expectedStringFields {
		if !seen[name] {
			return vmerrors.Newf(vmerrors.InvariantViolation, "java/lang/String is missing field %q", name)
		}
	}
	return nil
}

// utf16BEEncoder/-Decoder are the golang.org/x/text transformers used to
// get Java's exact UTF-16-big-endian-without-BOM compact form, the same
// role llvm::ConvertUTF32toUTF16 plus an explicit byte-swap play in
// original_source's toJavaCompactEncoding.
var (
	utf16BEEncoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	utf16BEDecoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
)

// toCompactEncoding converts a UTF-8 Go string to Java's compact encoding:
// LATIN-1 if every code point fits in a byte, else UTF-16BE (spec.md
// §4.7, grounded on original_source's toJavaCompactEncoding).
func toCompactEncoding(utf8String string) ([]byte, CompactEncoding, error) {
	allLatin1 := true
	for _, r := range utf8String {
		if r > 0xFF {
			allLatin1 = false
			break
		}
	}
	if allLatin1 {
		buf := make([]byte, 0, len(utf8String))
		for _, r := range utf8String {
			buf = append(buf, byte(r))
		}
		return buf, Latin1, nil
	}

	buf, _, err := transform.Bytes(utf16BEEncoder, []byte(utf8String))
	if err != nil {
		return nil, 0, vmerrors.Newf(vmerrors.InvariantViolation, "string interner: invalid utf-8 input: %v", err)
	}
	return buf, Utf16, nil
}

// fromCompactEncoding is the inverse of toCompactEncoding: it reconstructs
// the original UTF-8 text from a String instance's stored buffer and
// coder byte (spec.md §8's "intern(s).to_utf8() == s" invariant).
func fromCompactEncoding(buf []byte, encoding CompactEncoding) (string, error) {
	if encoding == Latin1 {
		runes := make([]rune, len(buf))
		for i, b := range buf {
			runes[i] = rune(b)
		}
		return string(runes), nil
	}

	out, _, err := transform.Bytes(utf16BEDecoder, buf)
	if err != nil {
		return "", vmerrors.Newf(vmerrors.InvariantViolation, "string interner: malformed utf-16 buffer: %v", err)
	}
	return string(out), nil
}

// Intern returns the canonical String instance for utf8String, allocating
// one the first time this exact (content, encoding) pair is seen and
// returning the existing instance on every subsequent call (spec.md
// §4.7/§8's interner-idempotence invariant).
func (in *Interner) Intern(utf8String string) (ref.Addr, error) {
	buf, encoding, err := toCompactEncoding(utf8String)
	if err != nil {
		return ref.Null, err
	}
	return in.internBuffer(buf, encoding)
}

func (in *Interner) internBuffer(buf []byte, encoding CompactEncoding) (ref.Addr, error) {
	key := poolKey{content: string(buf), encoding: encoding}

	in.mu.Lock()
	defer in.mu.Unlock()

	if addr, ok := in.pool[key]; ok {
		return addr, nil
	}

	addr, err := in.createString(buf, encoding)
	if err != nil {
		return ref.Null, err
	}
	in.pool[key] = addr
	return addr, nil
}

// createString allocates a byte[] holding buf and a String instance
// referencing it, wiring `value`/`coder`/`hash`/`hashIsZero` through the
// offsets checkStringLayout already validated.
func (in *Interner) createString(buf []byte, encoding CompactEncoding) (ref.Addr, error) {
	if in.stringClass == nil || in.byteArrayClass == nil {
		return ref.Null, vmerrors.New(vmerrors.InvariantViolation, "stringpool: LoadStringClass was never called")
	}

	valueAddr, err := in.heap.AllocateArray(in.byteArrayClass, len(buf))
	if err != nil {
		return ref.Null, err
	}
	copy(in.heap.ArrayData(valueAddr, in.byteArrayClass), buf)

	strAddr, err := in.heap.Allocate(in.stringClass, in.stringClass.FieldAreaSize)
	if err != nil {
		return ref.Null, err
	}

	field := in.heap.FieldArea(strAddr, in.stringClass)
	binary.LittleEndian.PutUint64(field[fieldOf(in.stringClass, "value").Offset:], uint64(valueAddr))
	field[fieldOf(in.stringClass, "coder").Offset] = byte(encoding)
	binary.LittleEndian.PutUint32(field[fieldOf(in.stringClass, "hash").Offset:], 0)
	field[fieldOf(in.stringClass, "hashIsZero").Offset] = 1 // lazily computed, not yet hashed

	return strAddr, nil
}

func fieldOf(class *classloader.ClassObject, name string) *classloader.Field {
	for _, f := range class.Fields {
		if !f.Static && f.Name == name {
			return f
		}
	}
	return nil
}

// ToUTF8 decodes an interned String instance's stored buffer back to a Go
// UTF-8 string, spec.md §8's `to_utf8()` operation.
func (in *Interner) ToUTF8(addr ref.Addr) (string, error) {
	in.mu.Lock()
	stringClass, byteArrayClass := in.stringClass, in.byteArrayClass
	in.mu.Unlock()
	if stringClass == nil {
		return "", vmerrors.New(vmerrors.InvariantViolation, "stringpool: LoadStringClass was never called")
	}

	field := in.heap.FieldArea(addr, stringClass)
	valueAddr := ref.Addr(binary.LittleEndian.Uint64(field[fieldOf(stringClass, "value").Offset:]))
	coder := CompactEncoding(field[fieldOf(stringClass, "coder").Offset])
	buf := in.heap.ArrayData(valueAddr, byteArrayClass)
	return fromCompactEncoding(buf, coder)
}

// AddRootObjects implements gc.RootProvider: every interned string is a
// root for as long as it stays in the pool (spec.md §4.7 "the String
// objects it hands out are rooted by the interner's role as a registered
// root provider").
func (in *Interner) AddRootObjects(visit func(ref.Addr)) {
	gc.DefaultAddRootObjects(in, visit)
}

// AddRootsForRelocation implements gc.RootProvider: lets the collector
// rewrite each pool entry's address in place after a collection moves it.
func (in *Interner) AddRootsForRelocation(visit func(*ref.Addr)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for key, addr := range in.pool {
		moved := addr
		visit(&moved)
		if moved != addr {
			in.pool[key] = moved
		}
	}
}
