/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import "corevm/vmerrors"

// ResolveMethod implements JVM spec §5.4.3.3 method resolution: resolve a
// symbolic method reference (className, name, descriptor) against a
// class's method hierarchy, grounded on Jacobin classes.go's
// FetchMethodAndCP. It searches the class itself, then its superclass
// chain, then (only for miranda/default methods) its interfaces.
func (l *Loader) ResolveMethod(className, name, descText string) (*Method, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.classes[className]
	if !ok {
		return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "class not loaded: %s", className)
	}
	if c.Kind == KindInterface {
		return l.resolveInterfaceMethod(c, name, descText)
	}

	for cur := c; cur != nil; cur = cur.Superclass() {
		if m := cur.FindDeclared(name, descText); m != nil {
			return m, nil
		}
	}
	// Not declared anywhere in the superclass chain: fall back to
	// maximally-specific interface methods (default methods), per
	// §5.4.3.3 step 2.
	for _, iface := range allInterfacesOf(c) {
		if m := iface.FindDeclared(name, descText); m != nil && !m.Abstract {
			return m, nil
		}
	}
	// Otherwise any non-private, non-static super-interface method, abstract
	// or not (miranda methods), per §5.4.3.3 step 3.
	for _, iface := range allInterfacesOf(c) {
		if m := iface.FindDeclared(name, descText); m != nil && m.Visibility != VisPrivate && !m.Static {
			return m, nil
		}
	}
	return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "no such method: %s.%s%s", className, name, descText)
}

// ResolveInterfaceMethod implements JVM spec §5.4.3.4: resolve a symbolic
// interface-method reference, searching the named interface itself, then
// java/lang/Object's public methods (equals/hashCode/toString that Object
// may satisfy on behalf of an interface type), then its superinterfaces.
func (l *Loader) ResolveInterfaceMethod(ifaceName, name, descText string) (*Method, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	iface, ok := l.classes[ifaceName]
	if !ok {
		return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "interface not loaded: %s", ifaceName)
	}
	return l.resolveInterfaceMethod(iface, name, descText)
}

func (l *Loader) resolveInterfaceMethod(iface *ClassObject, name, descText string) (*Method, error) {
	if m := iface.FindDeclared(name, descText); m != nil {
		return m, nil
	}
	if object, ok := l.classes["java/lang/Object"]; ok {
		if m := object.FindDeclared(name, descText); m != nil && m.Visibility == VisPublic {
			return m, nil
		}
	}
	for _, super := range iface.Interfaces() {
		if m, err := l.resolveInterfaceMethod(super, name, descText); err == nil {
			return m, nil
		}
	}
	return nil, vmerrors.Newf(vmerrors.ResolutionFailure, "no such interface method: %s.%s%s", iface.Name, name, descText)
}

// ResolveSpecialMethod implements JVM spec §5.4.3.3/invokespecial
// semantics: an invokespecial call resolves like a normal method
// resolution, but is never subject to virtual override — the compiler has
// already chosen the exact target (a superclass's method, a private
// method, or a constructor), and invokespecial just needs that exact
// declared method located; this is ResolveMethod's job, callers should use
// the declaring class named in the instruction, not the runtime class of
// the receiver.
func (l *Loader) ResolveSpecialMethod(className, name, descText string) (*Method, error) {
	return l.ResolveMethod(className, name, descText)
}

// SelectMethod implements JVM spec §5.4.6 method selection: given the
// method resolved from a symbolic reference and a receiver's actual
// runtime class, pick the method that will actually execute — the
// receiver's v-table entry at the resolved method's slot, if the resolved
// method participates in virtual dispatch, or the resolved method itself
// otherwise (static, private, constructors).
func SelectMethod(resolved *Method, receiverClass *ClassObject) *Method {
	if resolved.Slot < 0 || resolved.Slot >= len(receiverClass.VTable) {
		return resolved
	}
	return receiverClass.VTable[resolved.Slot]
}

// allInterfacesOf returns every interface c implements, directly or
// transitively, each appearing once, walking the superclass chain too
// (spec.md §4.4's default-method fallback must see interfaces implemented
// by any ancestor, not just c itself).
func allInterfacesOf(c *ClassObject) []*ClassObject {
	seen := make(map[*ClassObject]bool)
	var out []*ClassObject
	var walk func(*ClassObject)
	walk = func(cur *ClassObject) {
		for _, iface := range cur.Interfaces() {
			if !seen[iface] {
				seen[iface] = true
				out = append(out, iface)
				walk(iface)
			}
		}
		if super := cur.Superclass(); super != nil {
			walk(super)
		}
	}
	walk(c)
	return out
}
