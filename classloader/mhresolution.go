/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import "corevm/vmerrors"

// RefKind is a CONSTANT_MethodHandle's reference_kind (JVM spec Table 5.4.3.5-A).
type RefKind uint8

const (
	RefGetField RefKind = iota + 1
	RefGetStatic
	RefPutField
	RefPutStatic
	RefInvokeVirtual
	RefInvokeStatic
	RefInvokeSpecial
	RefNewInvokeSpecial
	RefInvokeInterface
)

// ResolvedMethodHandle is the structural result of resolving a
// CONSTANT_MethodHandle_info entry: which kind of access it names, and the
// field or method it resolves to. Building the actual
// java.lang.invoke.MethodHandle heap object (and running a bootstrap
// method for invokedynamic) is call-site linkage, not class-loading
// resolution, and sits above this component.
type ResolvedMethodHandle struct {
	Kind   RefKind
	Field  *Field  // set for RefGetField/RefGetStatic/RefPutField/RefPutStatic
	Method *Method // set for the invoke* and newInvokeSpecial kinds
}

// ResolveMethodHandle resolves a CONSTANT_MethodHandle_info entry (spec.md
// §4.4's resolution engine extended to handle constants), grounded on the
// teacher's mhResolution.go dispatch over reference_kind, but rewired to
// go through ResolveMethod/ResolveSpecialMethod/ResolveInterfaceMethod and
// the class-object field table instead of ad hoc constant-pool walks.
func (l *Loader) ResolveMethodHandle(cp *CPool, cpIndex uint16) (*ResolvedMethodHandle, error) {
	if int(cpIndex) <= 0 || int(cpIndex) >= len(cp.Index) {
		return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "invalid method handle CP index %d", cpIndex)
	}
	entry := cp.Index[cpIndex]
	if entry.Tag != cpMethodHandle {
		return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "CP entry %d is not a MethodHandle", cpIndex)
	}
	mh := cp.MethodHandles[entry.Slot]
	kind := RefKind(mh.RefKind)

	switch kind {
	case RefGetField, RefGetStatic, RefPutField, RefPutStatic:
		className, name, _, ok := cp.FieldRefAt(mh.RefIndex)
		if !ok {
			return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "method handle: bad field ref at %d", mh.RefIndex)
		}
		f, err := l.resolveField(className, name)
		if err != nil {
			return nil, err
		}
		return &ResolvedMethodHandle{Kind: kind, Field: f}, nil

	case RefInvokeVirtual, RefInvokeStatic:
		className, name, descText, ok := cp.MethodRefAt(mh.RefIndex, false)
		if !ok {
			return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "method handle: bad method ref at %d", mh.RefIndex)
		}
		m, err := l.ResolveMethod(className, name, descText)
		if err != nil {
			return nil, err
		}
		return &ResolvedMethodHandle{Kind: kind, Method: m}, nil

	case RefInvokeSpecial, RefNewInvokeSpecial:
		className, name, descText, ok := cp.MethodRefAt(mh.RefIndex, false)
		if !ok {
			return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "method handle: bad method ref at %d", mh.RefIndex)
		}
		m, err := l.ResolveSpecialMethod(className, name, descText)
		if err != nil {
			return nil, err
		}
		return &ResolvedMethodHandle{Kind: kind, Method: m}, nil

	case RefInvokeInterface:
		className, name, descText, ok := cp.MethodRefAt(mh.RefIndex, true)
		if !ok {
			return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "method handle: bad interface method ref at %d", mh.RefIndex)
		}
		m, err := l.ResolveInterfaceMethod(className, name, descText)
		if err != nil {
			return nil, err
		}
		return &ResolvedMethodHandle{Kind: kind, Method: m}, nil

	default:
		return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "unrecognized method handle reference_kind %d", mh.RefKind)
	}
}

func (l *Loader) resolveField(className, name string) (*Field, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.classes[className]
	if !ok {
		return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "class not loaded: %s", className)
	}
	for cur := c; cur != nil; cur = cur.Superclass() {
		for _, f := range cur.Fields {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "no such field: %s.%s", className, name)
}

// ResolveMethodType resolves a CONSTANT_MethodType_info entry to its
// parsed method descriptor — the structural half of JVM spec §5.4.3.5;
// building the java.lang.invoke.MethodType heap object is left to the
// object/execution layer above classloader.
func ResolveMethodType(cp *CPool, cpIndex uint16) (string, error) {
	if int(cpIndex) <= 0 || int(cpIndex) >= len(cp.Index) {
		return "", vmerrors.Newf(vmerrors.ResolutionFailure, "invalid method type CP index %d", cpIndex)
	}
	entry := cp.Index[cpIndex]
	if entry.Tag != cpMethodType {
		return "", vmerrors.Newf(vmerrors.ResolutionFailure, "CP entry %d is not a MethodType", cpIndex)
	}
	descText, ok := cp.Utf8At(cp.MethodTypes[entry.Slot])
	if !ok {
		return "", vmerrors.Newf(vmerrors.ResolutionFailure, "method type: bad descriptor index")
	}
	return descText, nil
}
