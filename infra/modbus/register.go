package modbus

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is the encoding of a register value.
type DataType string

// Supported data types.
const (
	Int16   DataType = "int16"
	Uint16  DataType = "uint16"
	Int32   DataType = "int32"
	Float32 DataType = "float32"
)

// WordOrder selects how two register words form a 32-bit value.
type WordOrder string

const (
	// HighFirst puts the most significant word in the lower address.
	HighFirst WordOrder = "high_first"
	// LowFirst puts the least significant word in the lower address.
	LowFirst WordOrder = "low_first"
)

// Register describes one holding register value.
type Register struct {
	Address uint16    `json:"address"`
	Type    DataType  `json:"type"`
	Words   WordOrder `json:"word_order"`
	// Scale multiplies the decoded value; zero means 1.
	Scale float64 `json:"scale"`
}

// Quantity returns the number of 16-bit registers the value spans.
func (r Register) Quantity() uint16 {
	switch r.Type {
	case Int32, Float32:
		return 2
	default:
		return 1
	}
}

func (r Register) validate(name string) error {
	switch r.Type {
	case Int16, Uint16, Int32, Float32:
	default:
		return fmt.Errorf("modbus: %s register: unknown type %q", name, r.Type)
	}
	switch r.Words {
	case "", HighFirst, LowFirst:
	default:
		return fmt.Errorf("modbus: %s register: unknown word order %q", name, r.Words)
	}
	if math.IsNaN(r.Scale) || math.IsInf(r.Scale, 0) {
		return fmt.Errorf("modbus: %s register: scale must be finite", name)
	}
	return nil
}

// Decode converts the raw big-endian register bytes into a scaled value.
func (r Register) Decode(b []byte) (float64, error) {
	if want := 2 * int(r.Quantity()); len(b) < want {
		return 0, fmt.Errorf("modbus: register %d: got %d bytes, want %d", r.Address, len(b), want)
	}
	var v float64
	switch r.Type {
	case Int16:
		v = float64(int16(binary.BigEndian.Uint16(b)))
	case Uint16:
		v = float64(binary.BigEndian.Uint16(b))
	case Int32:
		v = float64(int32(r.long(b)))
	case Float32:
		v = float64(math.Float32frombits(r.long(b)))
	default:
		return 0, fmt.Errorf("modbus: register %d: unknown type %q", r.Address, r.Type)
	}
	if r.Scale != 0 {
		v *= r.Scale
	}
	return v, nil
}

func (r Register) long(b []byte) uint32 {
	hi, lo := binary.BigEndian.Uint16(b[0:2]), binary.BigEndian.Uint16(b[2:4])
	if r.Words == LowFirst {
		hi, lo = lo, hi
	}
	return uint32(hi)<<16 | uint32(lo)
}
