/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package bytecode decodes a raw method body into a lazy, finite,
// non-restartable sequence of typed instruction records (spec.md §4.2).
// The decoder is table-driven: opcodes.go assigns every opcode a fixed
// OperandShape, and Decode reads the corresponding operand(s) in network
// (big-endian) byte order. tableswitch, lookupswitch and wide are handled
// specially because their length depends on the program counter (4-byte
// alignment padding) or on the opcode they widen.
//
// Grounded on original_source/src/jllvm/class/ByteCodeIterator.{hpp,cpp}
// for the parser/size pairing, and on the pack's own Go opcode tables
// (e.g. the [256]OperandShape idiom in opcodes.go) for the idiomatic Go
// shape of a table-driven decoder.
package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Offset int    // byte offset from the start of the method body
	Op     Opcode // the opcode itself
	Size   int    // total length in bytes, including the opcode byte

	// Operand is populated according to Op's shape; callers switch on Op
	// (or OperandShape) to know which field(s) apply.
	U1      uint8  // ShapeU1 / ShapeU1Signed (as int8(U1))
	U2      uint16 // ShapeU2 / local index widened by a preceding wide
	Branch  int32  // ShapeU2Signed / ShapeI4, the jump target's PC offset / wide iinc's 16-bit delta
	IincVal int8   // ShapeU1U1 second byte (iinc's signed delta)

	Switch *SwitchData // ShapeTableSwitch / ShapeLookupSwitch
	Wide   bool         // true if this instruction was widened by a preceding `wide`
}

// SwitchData holds the payload of a tableswitch or lookupswitch.
type SwitchData struct {
	IsTable bool
	Default int32

	// tableswitch fields
	Low, High int32
	Offsets   []int32 // length High-Low+1

	// lookupswitch fields
	Pairs []SwitchPair
}

// SwitchPair is one (match, offset) entry of a lookupswitch.
type SwitchPair struct {
	Match  int32
	Offset int32
}

// DecodeError reports malformed bytecode; per spec.md §4.2, decoding
// terminates on the first violation and recovery is not attempted.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bytecode: malformed instruction at offset %d: %s", e.Offset, e.Reason)
}

// Iterator is a one-shot, purely functional view over a method body: two
// Iterators created from the same body (via NewIterator) always yield
// identical sequences, but a single Iterator is not restartable — call
// NewIterator again to re-scan.
type Iterator struct {
	body []byte
	pc   int
	done bool
	err  error
}

// NewIterator returns an Iterator over body, starting at offset 0.
func NewIterator(body []byte) *Iterator {
	return &Iterator{body: body}
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Next decodes and returns the next instruction, or (Instruction{}, false)
// once the body is exhausted or a decode error has occurred (check Err).
func (it *Iterator) Next() (Instruction, bool) {
	if it.done || it.err != nil {
		return Instruction{}, false
	}
	if it.pc >= len(it.body) {
		it.done = true
		return Instruction{}, false
	}

	inst, size, err := decodeOne(it.body, it.pc)
	if err != nil {
		it.err = err
		it.done = true
		return Instruction{}, false
	}
	it.pc += size
	return inst, true
}

// Decode fully decodes body into a slice, for callers that want all
// instructions at once rather than streaming. It is equivalent to
// draining an Iterator.
func Decode(body []byte) ([]Instruction, error) {
	it := NewIterator(body)
	var out []Instruction
	for {
		inst, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, inst)
	}
	return out, it.Err()
}

func decodeOne(body []byte, pc int) (Instruction, int, error) {
	op := Opcode(body[pc])
	inst := Instruction{Offset: pc, Op: op}

	switch op {
	case OpWide:
		return decodeWide(body, pc)
	case OpTableSwitch:
		return decodeTableSwitch(body, pc)
	case OpLookupSwitch:
		return decodeLookupSwitch(body, pc)
	}

	shape := opcodeShapes[op]
	switch shape {
	case ShapeNone:
		inst.Size = 1
	case ShapeU1, ShapeU1Signed:
		if pc+2 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated 1-byte operand"}
		}
		inst.U1 = body[pc+1]
		inst.Size = 2
	case ShapeU2:
		if pc+3 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated 2-byte operand"}
		}
		inst.U2 = binary.BigEndian.Uint16(body[pc+1 : pc+3])
		inst.Size = 3
		if op == OpInvokeDynamic {
			// invokedynamic's u2 index is followed by two reserved zero bytes.
			if pc+5 > len(body) || body[pc+3] != 0 || body[pc+4] != 0 {
				return Instruction{}, 0, &DecodeError{pc, "invokedynamic reserved bytes must be zero"}
			}
			inst.Size = 5
		}
	case ShapeU2Signed:
		if pc+3 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated branch offset"}
		}
		inst.Branch = int32(int16(binary.BigEndian.Uint16(body[pc+1 : pc+3])))
		inst.Size = 3
	case ShapeU1U1:
		if pc+3 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated 2x1-byte operand"}
		}
		inst.U1 = body[pc+1]
		inst.IincVal = int8(body[pc+2])
		inst.Size = 3
	case ShapeU2U1:
		if pc+4 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated u2+u1 operand"}
		}
		inst.U2 = binary.BigEndian.Uint16(body[pc+1 : pc+3])
		count := body[pc+3]
		if op == OpInvokeIface {
			if count == 0 {
				return Instruction{}, 0, &DecodeError{pc, "invokeinterface count must be non-zero"}
			}
			if pc+5 > len(body) || body[pc+4] != 0 {
				return Instruction{}, 0, &DecodeError{pc, "invokeinterface reserved byte must be zero"}
			}
			inst.Size = 5
		} else {
			inst.U1 = count
			inst.Size = 4
		}
	case ShapeI4:
		if pc+5 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated 4-byte branch offset"}
		}
		inst.Branch = int32(binary.BigEndian.Uint32(body[pc+1 : pc+5]))
		inst.Size = 5
	default:
		return Instruction{}, 0, &DecodeError{pc, fmt.Sprintf("unhandled opcode 0x%02x", byte(op))}
	}

	return inst, inst.Size, nil
}

// decodeWide handles the `wide` prefix: it widens the following opcode's
// local-variable index to 16 bits and, for iinc, its delta to 16 bits too.
// Total length is 4 bytes normally, 6 for a widened iinc.
func decodeWide(body []byte, pc int) (Instruction, int, error) {
	if pc+2 > len(body) {
		return Instruction{}, 0, &DecodeError{pc, "truncated wide prefix"}
	}
	modified := Opcode(body[pc+1])
	inst := Instruction{Offset: pc, Op: modified, Wide: true}

	if modified == OpIInc {
		if pc+6 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated wide iinc"}
		}
		inst.U2 = binary.BigEndian.Uint16(body[pc+2 : pc+4])
		inst.Branch = int32(int16(binary.BigEndian.Uint16(body[pc+4 : pc+6])))
		inst.Size = 6
		return inst, 6, nil
	}

	if pc+4 > len(body) {
		return Instruction{}, 0, &DecodeError{pc, "truncated wide index"}
	}
	inst.U2 = binary.BigEndian.Uint16(body[pc+2 : pc+4])
	inst.Size = 4
	return inst, 4, nil
}

// alignPad computes the number of zero padding bytes following a
// tableswitch/lookupswitch opcode, per spec.md §4.2's rule
// "pad count = 3 - (offset mod 4)", where offset is the byte position
// immediately following the opcode (i.e. pc+1, the would-be start of the
// padding run).
func alignPad(offsetAfterOpcode int) int {
	return 3 - (offsetAfterOpcode % 4)
}

func decodeTableSwitch(body []byte, pc int) (Instruction, int, error) {
	pad := alignPad(pc + 1)
	cursor := pc + 1 + pad
	if err := checkPadding(body, pc+1, pad); err != nil {
		return Instruction{}, 0, err
	}
	if cursor+12 > len(body) {
		return Instruction{}, 0, &DecodeError{pc, "truncated tableswitch header"}
	}
	def := int32(binary.BigEndian.Uint32(body[cursor : cursor+4]))
	low := int32(binary.BigEndian.Uint32(body[cursor+4 : cursor+8]))
	high := int32(binary.BigEndian.Uint32(body[cursor+8 : cursor+12]))
	if low > high {
		return Instruction{}, 0, &DecodeError{pc, "tableswitch low > high"}
	}
	cursor += 12
	count := int(high - low + 1)
	offsets := make([]int32, count)
	for i := 0; i < count; i++ {
		if cursor+4 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated tableswitch offsets"}
		}
		offsets[i] = int32(binary.BigEndian.Uint32(body[cursor : cursor+4]))
		cursor += 4
	}
	size := cursor - pc
	return Instruction{
		Offset: pc, Op: OpTableSwitch, Size: size,
		Switch: &SwitchData{IsTable: true, Default: def, Low: low, High: high, Offsets: offsets},
	}, size, nil
}

func decodeLookupSwitch(body []byte, pc int) (Instruction, int, error) {
	pad := alignPad(pc + 1)
	cursor := pc + 1 + pad
	if err := checkPadding(body, pc+1, pad); err != nil {
		return Instruction{}, 0, err
	}
	if cursor+8 > len(body) {
		return Instruction{}, 0, &DecodeError{pc, "truncated lookupswitch header"}
	}
	def := int32(binary.BigEndian.Uint32(body[cursor : cursor+4]))
	npairs := int32(binary.BigEndian.Uint32(body[cursor+4 : cursor+8]))
	if npairs < 0 {
		return Instruction{}, 0, &DecodeError{pc, "lookupswitch negative pair count"}
	}
	cursor += 8
	pairs := make([]SwitchPair, npairs)
	for i := int32(0); i < npairs; i++ {
		if cursor+8 > len(body) {
			return Instruction{}, 0, &DecodeError{pc, "truncated lookupswitch pairs"}
		}
		pairs[i] = SwitchPair{
			Match:  int32(binary.BigEndian.Uint32(body[cursor : cursor+4])),
			Offset: int32(binary.BigEndian.Uint32(body[cursor+4 : cursor+8])),
		}
		cursor += 8
	}
	size := cursor - pc
	return Instruction{
		Offset: pc, Op: OpLookupSwitch, Size: size,
		Switch: &SwitchData{IsTable: false, Default: def, Pairs: pairs},
	}, size, nil
}

func checkPadding(body []byte, from, count int) error {
	if from+count > len(body) {
		return &DecodeError{from, "truncated switch padding"}
	}
	for i := 0; i < count; i++ {
		if body[from+i] != 0 {
			return &DecodeError{from, "non-zero switch padding byte"}
		}
	}
	return nil
}
