/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

// primitiveSizes mirrors descriptor.SizeOf's table, duplicated here (rather
// than imported) to keep this file's class objects constructible without a
// loader instance: they're process-wide constants, not loaded state.
var primitiveSizes = map[string]int{
	"B": 1, "Z": 1, "C": 2, "S": 2, "I": 4, "F": 4, "J": 8, "D": 8, "V": 0,
}

// primitiveClassObjects holds the nine singleton primitive (plus void)
// class objects, keyed by their field-descriptor letter (spec.md §3: "a
// primitive class object exists for each of the eight primitive types and
// void"). Built once at package init rather than per-loader, since
// primitive class objects carry no loaded state and are shared across any
// number of Loader instances in the same process.
var primitiveClassObjects = buildPrimitiveClassObjects()

func buildPrimitiveClassObjects() map[string]*ClassObject {
	m := make(map[string]*ClassObject, len(primitiveSizes))
	for letter, size := range primitiveSizes {
		m[letter] = &ClassObject{
			Name:         letter,
			Kind:         KindPrimitive,
			InstanceSize: size,
		}
	}
	return m
}
