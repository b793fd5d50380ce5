/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import (
	"encoding/binary"
	"fmt"
	"math"

	"corevm/vmerrors"
)

// rawClass is the direct, unprocessed result of parsing class-file bytes
// (spec.md §6): this_class, super_class, interfaces, fields, methods,
// access flags, and the retained constant pool. It corresponds to
// Jacobin's ParsedClass, trimmed to what the class-object store (§3) and
// resolution engine (§4.4) actually need — attributes the core doesn't
// read (annotations, debug tables, module/package info) are skipped
// during parsing rather than retained.
type rawClass struct {
	cp CPool

	thisClassName  string
	superClassName string // "" for java/lang/Object
	interfaceNames []string

	accessFlags    uint16
	isInterface    bool
	isAbstract     bool
	isSuperFlag    bool

	fields  []rawField
	methods []rawMethod
}

type rawField struct {
	name       string
	descText   string
	accessFlag uint16
	static     bool
	final      bool
	constValue any // int32/int64/float32/float64/string, from a ConstantValue attribute; nil if none
}

type rawMethod struct {
	name       string
	descText   string
	accessFlag uint16
	static     bool
	final      bool
	private    bool
	native     bool
	abstract   bool
	code       *CodeAttr // nil if native/abstract
}

const classMagic = 0xCAFEBABE

// accFlag bits the parser reads (JVM spec Table 4.1-A/4.5-A/4.6-A).
const (
	accPublic     = 0x0001
	accPrivate    = 0x0002
	accProtected  = 0x0004
	accStatic     = 0x0008
	accFinal      = 0x0010
	accSuperFlag  = 0x0020
	accInterface  = 0x0200
	accAbstract   = 0x0400
	accNative     = 0x0100
)

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) u1() (uint8, error) {
	if r.pos+1 > len(r.b) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u2() (uint16, error) {
	if r.pos+2 > len(r.b) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u4() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *byteReader) skip(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("unexpected end of class file at offset %d", r.pos)
	}
	r.pos += n
	return nil
}

// parseClassFile parses raw bytes into a rawClass. On any malformed input
// it returns a ParseError-kinded vmerrors.Error, per spec.md §7.
func parseClassFile(raw []byte) (*rawClass, error) {
	r := &byteReader{b: raw}

	magic, err := r.u4()
	if err != nil || magic != classMagic {
		return nil, vmerrors.Newf(vmerrors.ParseError, "not a class file (bad magic)")
	}
	if _, err := r.u2(); err != nil { // minor version
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated version")
	}
	if _, err := r.u2(); err != nil { // major version
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated version")
	}

	cp, err := parseConstantPool(r)
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "constant pool: %v", err)
	}

	accessFlags, err := r.u2()
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated access flags")
	}
	thisClassIdx, err := r.u2()
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated this_class")
	}
	superClassIdx, err := r.u2()
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated super_class")
	}

	thisName, ok := cp.ClassNameAt(thisClassIdx)
	if !ok {
		return nil, vmerrors.Newf(vmerrors.ParseError, "this_class does not resolve to a class name")
	}
	var superName string
	if superClassIdx != 0 {
		superName, ok = cp.ClassNameAt(superClassIdx)
		if !ok {
			return nil, vmerrors.Newf(vmerrors.ParseError, "super_class does not resolve to a class name")
		}
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated interfaces_count")
	}
	ifaceNames := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, vmerrors.Newf(vmerrors.ParseError, "truncated interface entry")
		}
		name, ok := cp.ClassNameAt(idx)
		if !ok {
			return nil, vmerrors.Newf(vmerrors.ParseError, "interface entry does not resolve to a class name")
		}
		ifaceNames = append(ifaceNames, name)
	}

	fields, err := parseFields(r, cp)
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "fields: %v", err)
	}

	methods, err := parseMethods(r, cp)
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "methods: %v", err)
	}

	// class attributes (SourceFile, etc.) are not retained; skip them.
	attrCount, err := r.u2()
	if err != nil {
		return nil, vmerrors.Newf(vmerrors.ParseError, "truncated class attributes_count")
	}
	for i := 0; i < int(attrCount); i++ {
		if err := skipAttribute(r); err != nil {
			return nil, vmerrors.Newf(vmerrors.ParseError, "class attribute: %v", err)
		}
	}

	return &rawClass{
		cp:             cp,
		thisClassName:  thisName,
		superClassName: superName,
		interfaceNames: ifaceNames,
		accessFlags:    accessFlags,
		isInterface:    accessFlags&accInterface != 0,
		isAbstract:     accessFlags&accAbstract != 0,
		isSuperFlag:    accessFlags&accSuperFlag != 0,
		fields:         fields,
		methods:        methods,
	}, nil
}

func parseConstantPool(r *byteReader) (CPool, error) {
	count, err := r.u2()
	if err != nil {
		return CPool{}, err
	}

	cp := CPool{Index: make([]CpEntry, count)}
	// index 0 is unused; the class-file format reserves it.
	i := uint16(1)
	for i < count {
		tag, err := r.u1()
		if err != nil {
			return CPool{}, err
		}
		switch tag {
		case cpUTF8:
			length, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			raw, err := r.bytes(int(length))
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpUTF8, Slot: uint16(len(cp.Utf8))}
			cp.Utf8 = append(cp.Utf8, string(raw))
		case cpIntConst:
			v, err := r.u4()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpIntConst, Slot: uint16(len(cp.IntConsts))}
			cp.IntConsts = append(cp.IntConsts, int32(v))
		case cpFloatConst:
			v, err := r.u4()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpFloatConst, Slot: uint16(len(cp.FloatConsts))}
			cp.FloatConsts = append(cp.FloatConsts, math.Float32frombits(v))
		case cpLongConst:
			hi, err := r.u4()
			if err != nil {
				return CPool{}, err
			}
			lo, err := r.u4()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpLongConst, Slot: uint16(len(cp.LongConsts))}
			cp.LongConsts = append(cp.LongConsts, int64(uint64(hi)<<32|uint64(lo)))
			// longs and doubles occupy two constant-pool slots (JVM spec 4.4.5).
			cp.Index = append(cp.Index, CpEntry{})
			i++
		case cpDoubleConst:
			hi, err := r.u4()
			if err != nil {
				return CPool{}, err
			}
			lo, err := r.u4()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpDoubleConst, Slot: uint16(len(cp.DoubleConsts))}
			cp.DoubleConsts = append(cp.DoubleConsts, math.Float64frombits(uint64(hi)<<32|uint64(lo)))
			cp.Index = append(cp.Index, CpEntry{})
			i++
		case cpClassRef:
			nameIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpClassRef, Slot: uint16(len(cp.ClassRefs))}
			cp.ClassRefs = append(cp.ClassRefs, nameIdx)
		case cpStringConst:
			utf8Idx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpStringConst, Slot: uint16(len(cp.StringConsts))}
			cp.StringConsts = append(cp.StringConsts, utf8Idx)
		case cpFieldRef:
			classIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			ntIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpFieldRef, Slot: uint16(len(cp.FieldRefs))}
			cp.FieldRefs = append(cp.FieldRefs, FieldRefEntry{ClassIndex: classIdx, NameAndTypeIndex: ntIdx})
		case cpMethodRef:
			classIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			ntIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpMethodRef, Slot: uint16(len(cp.MethodRefs))}
			cp.MethodRefs = append(cp.MethodRefs, MethodRefEntry{ClassIndex: classIdx, NameAndTypeIndex: ntIdx})
		case cpInterfaceRef:
			classIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			ntIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpInterfaceRef, Slot: uint16(len(cp.IfaceRefs))}
			cp.IfaceRefs = append(cp.IfaceRefs, MethodRefEntry{ClassIndex: classIdx, NameAndTypeIndex: ntIdx})
		case cpNameAndType:
			nameIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			descIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpNameAndType, Slot: uint16(len(cp.NameAndTypes))}
			cp.NameAndTypes = append(cp.NameAndTypes, NameAndTypeEntry{NameIndex: nameIdx, DescIndex: descIdx})
		case cpMethodHandle:
			refKind, err := r.u1()
			if err != nil {
				return CPool{}, err
			}
			refIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpMethodHandle, Slot: uint16(len(cp.MethodHandles))}
			cp.MethodHandles = append(cp.MethodHandles, MethodHandleEntry{RefKind: refKind, RefIndex: refIdx})
		case cpMethodType:
			descIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpMethodType, Slot: uint16(len(cp.MethodTypes))}
			cp.MethodTypes = append(cp.MethodTypes, descIdx)
		case cpDynamic:
			bootIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			ntIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpDynamic, Slot: uint16(len(cp.Dynamics))}
			cp.Dynamics = append(cp.Dynamics, DynamicEntry{BootstrapIndex: bootIdx, NameAndType: ntIdx})
		case cpInvokeDynamic:
			bootIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			ntIdx, err := r.u2()
			if err != nil {
				return CPool{}, err
			}
			cp.Index[i] = CpEntry{Tag: cpInvokeDynamic, Slot: uint16(len(cp.InvokeDynamics))}
			cp.InvokeDynamics = append(cp.InvokeDynamics, DynamicEntry{BootstrapIndex: bootIdx, NameAndType: ntIdx})
		case cpModule, cpPackage:
			if err := r.skip(2); err != nil {
				return CPool{}, err
			}
		default:
			return CPool{}, fmt.Errorf("unrecognized constant-pool tag %d at index %d", tag, i)
		}
		i++
	}
	return cp, nil
}

func parseFields(r *byteReader, cp CPool) ([]rawField, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]rawField, 0, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, _ := cp.Utf8At(nameIdx)
		descText, _ := cp.Utf8At(descIdx)

		f := rawField{
			name:       name,
			descText:   descText,
			accessFlag: accessFlags,
			static:     accessFlags&accStatic != 0,
			final:      accessFlags&accFinal != 0,
		}

		attrCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(attrCount); j++ {
			attrNameIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			attrLen, err := r.u4()
			if err != nil {
				return nil, err
			}
			attrName, _ := cp.Utf8At(attrNameIdx)
			if attrName == "ConstantValue" {
				body, err := r.bytes(int(attrLen))
				if err != nil {
					return nil, err
				}
				if len(body) != 2 {
					return nil, fmt.Errorf("malformed ConstantValue attribute")
				}
				cvIdx := binary.BigEndian.Uint16(body)
				f.constValue = constantValueAt(cp, cvIdx)
			} else if err := r.skip(int(attrLen)); err != nil {
				return nil, err
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func constantValueAt(cp CPool, idx uint16) any {
	if int(idx) <= 0 || int(idx) >= len(cp.Index) {
		return nil
	}
	e := cp.Index[idx]
	switch e.Tag {
	case cpIntConst:
		return cp.IntConsts[e.Slot]
	case cpFloatConst:
		return cp.FloatConsts[e.Slot]
	case cpLongConst:
		return cp.LongConsts[e.Slot]
	case cpDoubleConst:
		return cp.DoubleConsts[e.Slot]
	case cpStringConst:
		s, _ := cp.Utf8At(cp.StringConsts[e.Slot])
		return s
	default:
		return nil
	}
}

func parseMethods(r *byteReader, cp CPool) ([]rawMethod, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	methods := make([]rawMethod, 0, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, _ := cp.Utf8At(nameIdx)
		descText, _ := cp.Utf8At(descIdx)

		m := rawMethod{
			name:       name,
			descText:   descText,
			accessFlag: accessFlags,
			static:     accessFlags&accStatic != 0,
			final:      accessFlags&accFinal != 0,
			private:    accessFlags&accPrivate != 0,
			native:     accessFlags&accNative != 0,
			abstract:   accessFlags&accAbstract != 0,
		}

		attrCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(attrCount); j++ {
			attrNameIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			attrLen, err := r.u4()
			if err != nil {
				return nil, err
			}
			attrName, _ := cp.Utf8At(attrNameIdx)
			if attrName == "Code" {
				code, err := parseCodeAttribute(r, cp, int(attrLen))
				if err != nil {
					return nil, err
				}
				m.code = code
			} else if err := r.skip(int(attrLen)); err != nil {
				return nil, err
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func parseCodeAttribute(r *byteReader, cp CPool, attrLen int) (*CodeAttr, error) {
	start := r.pos
	maxStack, err := r.u2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return nil, err
	}
	codeLen, err := r.u4()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}

	excTableLen, err := r.u2()
	if err != nil {
		return nil, err
	}
	if err := r.skip(int(excTableLen) * 8); err != nil {
		return nil, err
	}

	subAttrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(subAttrCount); i++ {
		if _, err := r.u2(); err != nil { // attribute_name_index, unused here
			return nil, err
		}
		subLen, err := r.u4()
		if err != nil {
			return nil, err
		}
		if err := r.skip(int(subLen)); err != nil {
			return nil, err
		}
	}

	if r.pos-start != attrLen {
		return nil, fmt.Errorf("Code attribute length mismatch")
	}

	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)
	return &CodeAttr{MaxStack: int(maxStack), MaxLocals: int(maxLocals), Bytecode: codeCopy}, nil
}

func skipAttribute(r *byteReader) error {
	if _, err := r.u2(); err != nil {
		return err
	}
	length, err := r.u4()
	if err != nil {
		return err
	}
	return r.skip(int(length))
}
