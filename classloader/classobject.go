/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package classloader implements spec.md §4.3's class loader together with
// the class-object store (§3) and the resolution engine (§4.4). The three
// live in one package, the way Jacobin keeps class parsing, the method
// area, and method-table lookup together under jacobin/classloader —
// they share the name->object map and the constant-pool shapes too
// tightly to separate cleanly.
package classloader

import (
	"strings"

	"corevm/descriptor"
)

// Kind discriminates the four class-object shapes spec.md §3 describes.
type Kind int

const (
	KindPrimitive Kind = iota
	KindClass
	KindInterface
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "Primitive"
	case KindClass:
		return "Class"
	case KindInterface:
		return "Interface"
	case KindArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// InitState is a class's three-state initialization lifecycle (spec.md §3,
// §9 "Cyclic class graph" re-architecture note): the store is the single
// source of truth for this state, rather than a parent-pointer chase.
type InitState int

const (
	Uninitialized InitState = iota
	InProgress
	Initialized
)

// Visibility mirrors the JVM's access-flag visibilities that matter to
// resolution's override rules (spec.md §4.4).
type Visibility int

const (
	VisPrivate Visibility = iota
	VisPackage
	VisProtected
	VisPublic
)

// Header is the first machine word(s) of every Java heap object and of
// every class object itself: a pointer to the object's own meta-class
// ("Class"), followed by a cached identity hash (spec.md §3). Class
// objects are pinned for the process lifetime, so Header.MetaClass here
// is a plain Go pointer — no relocation, no tagging needed. Ordinary Java
// objects carry the same conceptual header, but relocatably, inside the
// GC heap; see gc's classPtr (gc/markptr.go) for that encoding.
type Header struct {
	MetaClass    *ClassObject
	IdentityHash uint32
}

// Field is one field record: name, descriptor, visibility, plus either an
// in-instance offset (non-static) or static storage (spec.md §3).
type Field struct {
	Name       string
	Type       descriptor.Descriptor
	Visibility Visibility
	Static     bool
	Final      bool

	// Offset is valid iff !Static: the byte offset of this field within
	// an instance's field area, including inherited fields.
	Offset int

	// Static storage, valid iff Static. Exactly one of RefSlot/Prim is
	// meaningful, selected by descriptor.IsReference(Type).
	RefSlot *StaticRef // reference-typed statics: a cell in the static-reference heap
	Prim    uint64     // primitive-typed statics: inline storage, raw bits
}

// Method is one method record (spec.md §3): name, descriptor, owner,
// flags, visibility, and an optional v-table slot.
type Method struct {
	Name       string
	Desc       descriptor.Method
	DescText   string // raw descriptor text, used as part of the dispatch key
	Owner      *ClassObject
	Visibility Visibility
	Static     bool
	Final      bool
	Native     bool
	Abstract   bool

	// Slot is this method's v-table index if it participates in dynamic
	// dispatch, or -1 if it does not (static, private, <init>, <clinit>).
	// Final methods get a slot like any other instance method, including a
	// final method that does not itself override anything.
	Slot int

	Code *CodeAttr // nil for abstract/native methods
}

// CodeAttr is the subset of the JVM Code attribute the core needs: the raw
// bytecode and the stack sizing the interpreter/JIT would need. Exception
// table entries and line-number tables are out of scope (debug-info
// emission is an external collaborator, spec.md §1).
type CodeAttr struct {
	MaxStack  int
	MaxLocals int
	Bytecode  []byte
}

// ITable is one class's dispatch table for one interface it implements
// (spec.md §3): the interface's id plus a trailing array of method
// records sized by that interface's table_size.
type ITable struct {
	InterfaceID int32
	Slots       []*Method
}

// ClassObject is the runtime metadata for one loaded type (spec.md §3).
type ClassObject struct {
	Header Header
	Name   string // binary name, e.g. "java/lang/String" or "[I"
	Kind   Kind

	// Class/Interface only.
	FieldAreaSize int
	TableSize     int
	Methods       []*Method
	Fields        []*Field
	Bases         []*ClassObject // bases[0] = superclass for Kind==Class (absent for Object); interfaces follow
	ITables       []*ITable
	Initialized   InitState
	Abstract      bool
	InterfaceID   int32 // Kind==Interface only: globally unique id
	VTable        []*Method
	Package       string // run-time package, derived from Name up to the last '/'
	CP            *CPool
	GCMask        []int // f.Offset/pointer_size for each reference field, inherited + own (spec.md §8)

	// Array only.
	ComponentType *ClassObject

	// InstanceSize is header_size + FieldAreaSize for Class/Interface kinds
	// (spec.md §8's "class object instance size" property), or the raw
	// byte width of the primitive itself for Kind==KindPrimitive. Unused
	// for arrays, whose size depends on a runtime-supplied length.
	InstanceSize int
}

// HeaderSize is the fixed leading part of every heap object: the tagged
// class-object pointer plus the reserved identity-hash word (spec.md
// §3). It is mirrored, not imported, from the gc package's identical
// unexported constant, to avoid a classloader->gc dependency for a
// single shared wire-format fact; exported so packages that validate
// absolute field offsets against a class's declared layout (stringpool's
// field-offset assertion, spec.md §4.7) don't have to duplicate it again.
const HeaderSize = 16

// RuntimePackage derives a class's run-time package name from its binary
// name, used by the override-visibility rule in spec.md §4.4 ("package-
// private methods override only methods declared in the same package").
func RuntimePackage(binaryName string) string {
	if i := strings.LastIndexByte(binaryName, '/'); i >= 0 {
		return binaryName[:i]
	}
	return ""
}

// FindDeclared returns the method declared directly on c (not inherited)
// matching name+descriptor, or nil.
func (c *ClassObject) FindDeclared(name, descText string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.DescText == descText {
			return m
		}
	}
	return nil
}

// Superclass returns bases[0] for a class, or nil if c has none (Object,
// interfaces, primitives, or arrays use ComponentType/none instead).
func (c *ClassObject) Superclass() *ClassObject {
	if c.Kind != KindClass || len(c.Bases) == 0 {
		return nil
	}
	// bases[0] is a class only for Kind==KindClass; an interface's
	// bases[] holds only super-interfaces (spec.md §3).
	if c.Bases[0].Kind == KindClass {
		return c.Bases[0]
	}
	return nil
}

// Interfaces returns the direct interfaces c implements/extends: all of
// Bases for an interface, or Bases[1:] for a class with a superclass at
// Bases[0], or all of Bases for a class with no superclass (java/lang/Object).
func (c *ClassObject) Interfaces() []*ClassObject {
	if c.Kind == KindInterface {
		return c.Bases
	}
	if super := c.Superclass(); super != nil {
		return c.Bases[1:]
	}
	return c.Bases
}

// WouldBeInstanceOf implements spec.md §8's subtyping property: true iff
// other appears in a's transitive base set, or (for arrays) iff the
// component types are subtype-compatible, or other is one of the array
// class's own bases. An array class's bases hold only java/lang/Object, so
// an array is not reported as an instance of Cloneable or Serializable.
func (a *ClassObject) WouldBeInstanceOf(other *ClassObject) bool {
	if a == other {
		return true
	}
	if a.Kind == KindArray {
		if other.Kind == KindArray {
			return a.ComponentType.WouldBeInstanceOf(other.ComponentType)
		}
		for _, base := range a.Bases {
			if base == other {
				return true
			}
		}
		return false
	}
	for _, base := range a.Bases {
		if base == other || base.WouldBeInstanceOf(other) {
			return true
		}
	}
	return false
}
