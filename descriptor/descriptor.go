/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package descriptor implements the JVM field- and method-descriptor
// algebra described in spec.md §4.1: parsing, pretty-printing, and the
// handful of predicates (size, is-reference) the rest of the core needs
// to lay out fields and dispatch tables.
//
// Textual form matches the class-file spec: B C D F I J S Z V for the
// primitives, L<name>; for a class reference, [<desc> for an array, and
// (<params>)<ret> for a method. Descriptors are immutable and cheap to
// copy, grounded on the Descriptor/FieldType variant in
// original_source/src/jllvm/object/ClassObject.hpp and on the descriptor
// strings Jacobin's classloader carries as plain Go strings.
package descriptor

import (
	"fmt"
	"strings"
)

// Primitive names one of the nine JVM primitive/void kinds.
type Primitive int

const (
	Boolean Primitive = iota
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
	Void
)

var primitiveLetters = map[Primitive]byte{
	Boolean: 'Z', Byte: 'B', Char: 'C', Short: 'S',
	Int: 'I', Long: 'J', Float: 'F', Double: 'D', Void: 'V',
}

var letterToPrimitive = map[byte]Primitive{
	'Z': Boolean, 'B': Byte, 'C': Char, 'S': Short,
	'I': Int, 'J': Long, 'F': Float, 'D': Double, 'V': Void,
}

// Tag discriminates the three descriptor shapes.
type Tag int

const (
	TagPrimitive Tag = iota
	TagObject
	TagArray
)

// Descriptor is a tagged, value-typed field descriptor. Method descriptors
// are represented separately as Method (params + return), since they are
// not themselves nestable the way field descriptors are.
type Descriptor struct {
	Tag       Tag
	Prim      Primitive  // valid iff Tag == TagPrimitive
	ClassName string     // valid iff Tag == TagObject; binary name, no L/; wrapper
	Component *Descriptor // valid iff Tag == TagArray
}

// Method is a parsed method descriptor: an ordered parameter list plus a
// return descriptor.
type Method struct {
	Params []Descriptor
	Return Descriptor
}

// ParseError reports a malformed descriptor string, spec.md §4.1's
// strict-LL(1)-rejects-empty/unterminated/trailing-garbage contract.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("descriptor: invalid %q: %s", e.Text, e.Reason)
}

// NewPrimitive builds a primitive descriptor.
func NewPrimitive(p Primitive) Descriptor { return Descriptor{Tag: TagPrimitive, Prim: p} }

// NewObject builds a class-reference descriptor for the given binary name
// (e.g. "java/lang/String", no leading L or trailing ;).
func NewObject(name string) Descriptor { return Descriptor{Tag: TagObject, ClassName: name} }

// NewArray builds an array-of-component descriptor.
func NewArray(component Descriptor) Descriptor {
	c := component
	return Descriptor{Tag: TagArray, Component: &c}
}

// ParseField parses one field descriptor, consuming the entire string.
func ParseField(text string) (Descriptor, error) {
	d, rest, err := parseFieldPrefix(text)
	if err != nil {
		return Descriptor{}, err
	}
	if rest != "" {
		return Descriptor{}, &ParseError{Text: text, Reason: "trailing garbage after descriptor"}
	}
	return d, nil
}

// parseFieldPrefix parses one field descriptor off the front of text and
// returns the unconsumed remainder, the LL(1) shape that lets ParseMethod
// read a run of parameter descriptors without knowing their count ahead of
// time.
func parseFieldPrefix(text string) (Descriptor, string, error) {
	if text == "" {
		return Descriptor{}, "", &ParseError{Text: text, Reason: "empty descriptor"}
	}

	c := text[0]
	switch c {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D', 'V':
		return NewPrimitive(letterToPrimitive[c]), text[1:], nil
	case 'L':
		end := strings.IndexByte(text, ';')
		if end < 0 {
			return Descriptor{}, "", &ParseError{Text: text, Reason: "unterminated class reference, missing ';'"}
		}
		name := text[1:end]
		if name == "" {
			return Descriptor{}, "", &ParseError{Text: text, Reason: "empty class name in 'L;'"}
		}
		return NewObject(name), text[end+1:], nil
	case '[':
		component, rest, err := parseFieldPrefix(text[1:])
		if err != nil {
			return Descriptor{}, "", err
		}
		return NewArray(component), rest, nil
	default:
		return Descriptor{}, "", &ParseError{Text: text, Reason: fmt.Sprintf("unrecognized tag %q", c)}
	}
}

// ParseMethod parses a method descriptor of the form (<field>*)<field>.
func ParseMethod(text string) (Method, error) {
	if len(text) == 0 || text[0] != '(' {
		return Method{}, &ParseError{Text: text, Reason: "method descriptor must start with '('"}
	}
	rest := text[1:]
	var params []Descriptor
	for {
		if rest == "" {
			return Method{}, &ParseError{Text: text, Reason: "unterminated parameter list, missing ')'"}
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		d, next, err := parseFieldPrefix(rest)
		if err != nil {
			return Method{}, err
		}
		if d.Tag == TagPrimitive && d.Prim == Void {
			return Method{}, &ParseError{Text: text, Reason: "'V' is not a valid parameter type"}
		}
		params = append(params, d)
		rest = next
	}
	ret, rest, err := parseFieldPrefix(rest)
	if err != nil {
		return Method{}, err
	}
	if rest != "" {
		return Method{}, &ParseError{Text: text, Reason: "trailing garbage after return type"}
	}
	return Method{Params: params, Return: ret}, nil
}

// Write renders d back to its canonical textual form. Write is injective:
// distinct descriptors never render to the same text, and
// ParseField(Write(d)) == d for every d this package can produce
// (spec.md §8, "Descriptor round-trip").
func Write(d Descriptor) string {
	switch d.Tag {
	case TagPrimitive:
		return string(primitiveLetters[d.Prim])
	case TagObject:
		return "L" + d.ClassName + ";"
	case TagArray:
		return "[" + Write(*d.Component)
	default:
		return ""
	}
}

// WriteMethod renders a method descriptor back to its canonical form.
func WriteMethod(m Method) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.Params {
		sb.WriteString(Write(p))
	}
	sb.WriteByte(')')
	sb.WriteString(Write(m.Return))
	return sb.String()
}

var primitiveNames = map[Primitive]string{
	Boolean: "boolean", Byte: "byte", Char: "char", Short: "short",
	Int: "int", Long: "long", Float: "float", Double: "double", Void: "void",
}

// Pretty renders d in human-readable Java source form, used only in
// diagnostics (trace lines, the cmd/corevm "load" subcommand's dump).
func Pretty(d Descriptor) string {
	switch d.Tag {
	case TagPrimitive:
		return primitiveNames[d.Prim]
	case TagObject:
		return strings.ReplaceAll(d.ClassName, "/", ".")
	case TagArray:
		return Pretty(*d.Component) + "[]"
	default:
		return "?"
	}
}

// PrettyMethod renders a method descriptor in human-readable form, e.g.
// "(java.lang.String[]) -> void".
func PrettyMethod(m Method) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = Pretty(p)
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), Pretty(m.Return))
}

// pointerSize is the target machine's pointer width. The spec fixes this
// at one machine word; corevm targets 64-bit hosts exclusively.
const pointerSize = 8

var primitiveSizes = map[Primitive]int{
	Boolean: 1, Byte: 1, Char: 2, Short: 2,
	Int: 4, Long: 8, Float: 4, Double: 8, Void: 0,
}

// SizeOf returns the in-memory byte size of d on the target machine:
// pointer-sized for references and arrays, the JVM's fixed width for
// primitives, zero for Void.
func SizeOf(d Descriptor) int {
	switch d.Tag {
	case TagPrimitive:
		return primitiveSizes[d.Prim]
	case TagObject, TagArray:
		return pointerSize
	default:
		return 0
	}
}

// IsReference reports whether d denotes a reference type (object or
// array), i.e. whether its storage participates in the GC mask.
func IsReference(d Descriptor) bool {
	return d.Tag == TagObject || d.Tag == TagArray
}

// Equal reports structural equality between two descriptors.
func Equal(a, b Descriptor) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagPrimitive:
		return a.Prim == b.Prim
	case TagObject:
		return a.ClassName == b.ClassName
	case TagArray:
		return Equal(*a.Component, *b.Component)
	default:
		return true
	}
}
