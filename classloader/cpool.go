/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

// Constant-pool tag values, per the class-file format (spec.md §6). Kept
// numerically identical to the JVM spec's CONSTANT_* tags, the same
// convention classes.go / CPutils.go use in the teacher pack.
const (
	cpDummy              = 0
	cpUTF8               = 1
	cpIntConst           = 3
	cpFloatConst         = 4
	cpLongConst          = 5
	cpDoubleConst        = 6
	cpClassRef           = 7
	cpStringConst        = 8
	cpFieldRef           = 9
	cpMethodRef          = 10
	cpInterfaceRef       = 11
	cpNameAndType        = 12
	cpMethodHandle       = 15
	cpMethodType         = 16
	cpDynamic            = 17
	cpInvokeDynamic      = 18
	cpModule             = 19
	cpPackage            = 20
)

// CpEntry is a slot in the constant pool index: a tag plus an index into
// the tag-specific slice below. This two-level indirection mirrors
// Jacobin's classes.go CPool exactly, since it is dictated by the class
// file wire format rather than a design choice of ours.
type CpEntry struct {
	Tag  uint16
	Slot uint16
}

// CPool is one class's constant pool, retained after loading so method
// resolution and method-handle resolution (spec.md §4.3 step 5, §4.4) have
// somewhere to read ConstantValue attributes and symbolic references from.
type CPool struct {
	Index []CpEntry

	Utf8          []string
	IntConsts     []int32
	FloatConsts   []float32
	LongConsts    []int64
	DoubleConsts  []float64
	ClassRefs     []uint16 // -> Utf8 index holding the class's binary name
	StringConsts  []uint16 // -> Utf8 index
	FieldRefs     []FieldRefEntry
	MethodRefs    []MethodRefEntry
	IfaceRefs     []MethodRefEntry
	NameAndTypes  []NameAndTypeEntry
	MethodHandles []MethodHandleEntry
	MethodTypes   []uint16 // -> Utf8 index holding the descriptor text
	Dynamics      []DynamicEntry
	InvokeDynamics []DynamicEntry
}

type FieldRefEntry struct {
	ClassIndex      uint16
	NameAndTypeIndex uint16
}

type MethodRefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type NameAndTypeEntry struct {
	NameIndex uint16
	DescIndex uint16
}

type MethodHandleEntry struct {
	RefKind  uint8
	RefIndex uint16
}

type DynamicEntry struct {
	BootstrapIndex uint16
	NameAndType    uint16
}

// Utf8At returns the UTF-8 string stored at a constant-pool index that
// must point to a CONSTANT_Utf8 entry.
func (cp *CPool) Utf8At(index uint16) (string, bool) {
	if int(index) <= 0 || int(index) >= len(cp.Index) {
		return "", false
	}
	e := cp.Index[index]
	if e.Tag != cpUTF8 {
		return "", false
	}
	if int(e.Slot) >= len(cp.Utf8) {
		return "", false
	}
	return cp.Utf8[e.Slot], true
}

// ClassNameAt resolves a CONSTANT_Class entry to its binary name.
func (cp *CPool) ClassNameAt(index uint16) (string, bool) {
	if int(index) <= 0 || int(index) >= len(cp.Index) {
		return "", false
	}
	e := cp.Index[index]
	if e.Tag != cpClassRef {
		return "", false
	}
	if int(e.Slot) >= len(cp.ClassRefs) {
		return "", false
	}
	return cp.Utf8At(cp.ClassRefs[e.Slot])
}

// NameAndTypeAt resolves a CONSTANT_NameAndType entry to (name, descriptor).
func (cp *CPool) NameAndTypeAt(index uint16) (name, desc string, ok bool) {
	if int(index) <= 0 || int(index) >= len(cp.Index) {
		return "", "", false
	}
	e := cp.Index[index]
	if e.Tag != cpNameAndType {
		return "", "", false
	}
	if int(e.Slot) >= len(cp.NameAndTypes) {
		return "", "", false
	}
	nt := cp.NameAndTypes[e.Slot]
	name, ok1 := cp.Utf8At(nt.NameIndex)
	desc, ok2 := cp.Utf8At(nt.DescIndex)
	return name, desc, ok1 && ok2
}

// MethodRefAt resolves a CONSTANT_Methodref (or InterfaceMethodref, via
// iface=true) to (className, methodName, methodDesc).
func (cp *CPool) MethodRefAt(index uint16, iface bool) (className, name, desc string, ok bool) {
	if int(index) <= 0 || int(index) >= len(cp.Index) {
		return "", "", "", false
	}
	e := cp.Index[index]
	wantTag := uint16(cpMethodRef)
	table := cp.MethodRefs
	if iface {
		wantTag = cpInterfaceRef
		table = cp.IfaceRefs
	}
	if e.Tag != wantTag || int(e.Slot) >= len(table) {
		return "", "", "", false
	}
	ref := table[e.Slot]
	className, ok1 := cp.ClassNameAt(ref.ClassIndex)
	name, desc, ok2 := cp.NameAndTypeAt(ref.NameAndTypeIndex)
	return className, name, desc, ok1 && ok2
}

// FieldRefAt resolves a CONSTANT_Fieldref to (className, fieldName, fieldDesc).
func (cp *CPool) FieldRefAt(index uint16) (className, name, desc string, ok bool) {
	if int(index) <= 0 || int(index) >= len(cp.Index) {
		return "", "", "", false
	}
	e := cp.Index[index]
	if e.Tag != cpFieldRef || int(e.Slot) >= len(cp.FieldRefs) {
		return "", "", "", false
	}
	ref := cp.FieldRefs[e.Slot]
	className, ok1 := cp.ClassNameAt(ref.ClassIndex)
	name, desc, ok2 := cp.NameAndTypeAt(ref.NameAndTypeIndex)
	return className, name, desc, ok1 && ok2
}
