/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import (
	"math"

	"corevm/descriptor"
	"corevm/vmerrors"
)

// buildClassObject runs spec.md §4.3's Add() layout steps (4-7) over a
// parsed class and its already-resolved bases, producing a fully laid out
// *ClassObject: v-table slot assignment, instance field offsets, the GC
// mask, and flattened i-tables. Grounded on Jacobin classes.go's
// method-table construction, generalized from Jacobin's single flat method
// list into the override-aware slot assignment spec.md calls for.
func buildClassObject(arena *classArena, statics *StaticRefHeap, raw *rawClass, super *ClassObject, ifaces []*ClassObject, ifaceIDs map[string]int32) (*ClassObject, error) {
	co := arena.alloc()
	co.Name = raw.thisClassName
	co.Package = RuntimePackage(raw.thisClassName)
	co.Abstract = raw.isAbstract
	cp := raw.cp
	co.CP = &cp

	if raw.isInterface {
		co.Kind = KindInterface
		// An interface's class file names java/lang/Object as its super,
		// but its bases hold only its direct super-interfaces.
		super = nil
	} else {
		co.Kind = KindClass
	}

	if super != nil {
		co.Bases = append(co.Bases, super)
	}
	co.Bases = append(co.Bases, ifaces...)

	if err := layoutFields(co, raw, super, statics); err != nil {
		return nil, err
	}
	if err := layoutMethods(co, raw, super); err != nil {
		return nil, err
	}
	layoutGCMask(co, super)
	if err := layoutITables(co, allInterfacesOf(co), ifaceIDs); err != nil {
		return nil, err
	}
	co.InstanceSize = HeaderSize + co.FieldAreaSize

	return co, nil
}

// layoutFields assigns instance offsets (step 5): inherited fields occupy
// the same offsets the superclass gave them, new fields are appended after
// the superclass's field-area, and static fields are bound to storage
// (a StaticRefHeap cell for references, an inline word for primitives).
// alignTo rounds offset up to a multiple of size, so that a field never
// straddles a boundary smaller than its own width — in particular so that
// every reference-typed field lands on a pointer-size boundary, letting
// the GC mask store f.offset/pointer_size without losing information.
func alignTo(offset, size int) int {
	if size <= 1 {
		return offset
	}
	return (offset + size - 1) &^ (size - 1)
}

func layoutFields(co *ClassObject, raw *rawClass, super *ClassObject, statics *StaticRefHeap) error {
	base := 0
	if super != nil {
		base = super.FieldAreaSize
	}
	offset := base

	for _, rf := range raw.fields {
		desc, err := descriptor.ParseField(rf.descText)
		if err != nil {
			return vmerrors.Newf(vmerrors.ParseError, "field %s.%s: %v", raw.thisClassName, rf.name, err)
		}
		vis := visibilityOf(rf.accessFlag)
		f := &Field{
			Name:       rf.name,
			Type:       desc,
			Visibility: vis,
			Static:     rf.static,
			Final:      rf.final,
		}
		if rf.static {
			if descriptor.IsReference(desc) {
				f.RefSlot = statics.Allocate()
			} else {
				f.Prim = encodeConstant(rf.constValue)
			}
		} else {
			size := descriptor.SizeOf(desc)
			offset = alignTo(offset, size)
			f.Offset = offset
			offset += size
		}
		co.Fields = append(co.Fields, f)
	}
	co.FieldAreaSize = offset
	return nil
}

func encodeConstant(v any) uint64 {
	switch val := v.(type) {
	case int32:
		return uint64(uint32(val))
	case int64:
		return uint64(val)
	case float32:
		return uint64(math.Float32bits(val))
	case float64:
		return math.Float64bits(val)
	default:
		return 0
	}
}

// layoutMethods runs step 4: builds the owning ClassObject's declared
// Method records, then assigns v-table slots. A non-static, non-private,
// non-<init> method either overrides an inherited slot (per the JVM §5.4.5
// override-visibility rule: same name+descriptor, and the superclass's
// method is visible to this class's package) or is appended as a new slot.
func layoutMethods(co *ClassObject, raw *rawClass, super *ClassObject) error {
	var inherited []*Method
	if super != nil {
		inherited = append(inherited, super.VTable...)
	}

	for _, rm := range raw.methods {
		desc, err := descriptor.ParseMethod(rm.descText)
		if err != nil {
			return vmerrors.Newf(vmerrors.ParseError, "method %s.%s: %v", raw.thisClassName, rm.name, err)
		}
		var code *CodeAttr
		if rm.code != nil {
			code = rm.code
		}
		m := &Method{
			Name:     rm.name,
			Desc:     desc,
			DescText: rm.descText,
			Owner:    co,
			Visibility: visibilityOf(rm.accessFlag),
			Static:   rm.static,
			Final:    rm.final,
			Native:   rm.native,
			Abstract: rm.abstract,
			Slot:     -1,
			Code:     code,
		}
		co.Methods = append(co.Methods, m)

		if m.Static || rm.private || m.Name == "<init>" || m.Name == "<clinit>" {
			continue
		}

		overrideSlot := -1
		for i, sup := range inherited {
			if sup.Name == m.Name && sup.DescText == m.DescText && overridable(sup, m) {
				overrideSlot = i
				break
			}
		}
		if overrideSlot >= 0 {
			m.Slot = overrideSlot
			inherited[overrideSlot] = m
		} else {
			m.Slot = len(inherited)
			inherited = append(inherited, m)
		}
	}

	co.VTable = inherited
	co.TableSize = len(inherited)
	return nil
}

// overridable implements the JVM §5.4.5 override-visibility rule: a
// subclass method overrides an inherited one unless the inherited one is
// private (never overridable, excluded earlier) or package-private in a
// different run-time package than the overriding class.
func overridable(super, sub *Method) bool {
	if super.Visibility == VisPrivate {
		return false
	}
	if super.Visibility == VisPackage {
		return super.Owner.Package == sub.Owner.Package
	}
	return true
}

// pointerSizeUnits is the machine pointer width the GC mask's offsets are
// expressed in (spec.md §8: "gc_mask contains f.offset / pointer_size").
const pointerSizeUnits = 8

// layoutGCMask runs step 6: the GC mask lists the pointer-sized-unit
// offsets, within an instance's field area, that hold object references —
// inherited offsets plus this class's own reference-typed instance fields.
// The relocating collector (spec.md §4.6) walks this mask to find an
// object's outgoing pointers without re-deriving it from descriptors at
// scan time.
func layoutGCMask(co *ClassObject, super *ClassObject) {
	if super != nil {
		co.GCMask = append(co.GCMask, super.GCMask...)
	}
	for _, f := range co.Fields {
		if !f.Static && descriptor.IsReference(f.Type) {
			co.GCMask = append(co.GCMask, f.Offset/pointerSizeUnits)
		}
	}
}

// layoutITables runs step 7: for each interface co implements (directly or
// transitively, already flattened into ifaces by the caller), build a
// dispatch table sized to that interface's table_size, with each slot
// filled by the v-table method that satisfies it.
func layoutITables(co *ClassObject, ifaces []*ClassObject, ifaceIDs map[string]int32) error {
	for _, iface := range ifaces {
		it := &ITable{InterfaceID: iface.InterfaceID, Slots: make([]*Method, len(iface.VTable))}
		for i, ifaceMethod := range iface.VTable {
			impl := findVTableMethod(co, ifaceMethod.Name, ifaceMethod.DescText)
			if impl == nil {
				impl = ifaceMethod // default method inherited as-is, or left abstract
			}
			it.Slots[i] = impl
		}
		co.ITables = append(co.ITables, it)
	}
	return nil
}

func findVTableMethod(co *ClassObject, name, descText string) *Method {
	for _, m := range co.VTable {
		if m.Name == name && m.DescText == descText {
			return m
		}
	}
	return nil
}

func visibilityOf(accessFlags uint16) Visibility {
	switch {
	case accessFlags&accPublic != 0:
		return VisPublic
	case accessFlags&accProtected != 0:
		return VisProtected
	case accessFlags&accPrivate != 0:
		return VisPrivate
	default:
		return VisPackage
	}
}
