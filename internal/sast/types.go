package sast

import "fmt"

// Type is implemented by every type-grammar variant. Equality
// is structural: two Type values describe the same type iff Equal reports
// true, regardless of which parse produced them.
type Type interface {
	typeNode()
	String() string
	Equal(Type) bool
}

// IntegerType is a signed or unsigned integer of a fixed bit width, mirroring
// the host language's uintN/intN family.
type IntegerType struct {
	Signed bool
	Bits   int
}

func (IntegerType) typeNode() {}
func (t IntegerType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}
func (t IntegerType) Equal(o Type) bool {
	ot, ok := o.(IntegerType)
	return ok && ot.Signed == t.Signed && ot.Bits == t.Bits
}

type AddressType struct{ Payable bool }

func (AddressType) typeNode() {}
func (t AddressType) String() string {
	if t.Payable {
		return "address payable"
	}
	return "address"
}
func (t AddressType) Equal(o Type) bool {
	ot, ok := o.(AddressType)
	return ok && ot.Payable == t.Payable
}

type BoolType struct{}

func (BoolType) typeNode()         {}
func (BoolType) String() string    { return "bool" }
func (BoolType) Equal(o Type) bool { _, ok := o.(BoolType); return ok }

type StringType struct{}

func (StringType) typeNode()         {}
func (StringType) String() string    { return "string" }
func (StringType) Equal(o Type) bool { _, ok := o.(StringType); return ok }

// BytesType is either the dynamic `bytes` type (N == 0) or a fixed-width
// `bytesN` (1 <= N <= 32).
type BytesType struct{ N int }

func (BytesType) typeNode() {}
func (t BytesType) String() string {
	if t.N == 0 {
		return "bytes"
	}
	return fmt.Sprintf("bytes%d", t.N)
}
func (t BytesType) Equal(o Type) bool {
	ot, ok := o.(BytesType)
	return ok && ot.N == t.N
}

// FixedArrayType is T[N].
type FixedArrayType struct {
	Elem Type
	Size int
}

func (FixedArrayType) typeNode() {}
func (t FixedArrayType) String() string {
	return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Size)
}
func (t FixedArrayType) Equal(o Type) bool {
	ot, ok := o.(FixedArrayType)
	return ok && ot.Size == t.Size && ot.Elem.Equal(t.Elem)
}

// DynamicArrayType is T[].
type DynamicArrayType struct{ Elem Type }

func (DynamicArrayType) typeNode()        {}
func (t DynamicArrayType) String() string { return t.Elem.String() + "[]" }
func (t DynamicArrayType) Equal(o Type) bool {
	ot, ok := o.(DynamicArrayType)
	return ok && ot.Elem.Equal(t.Elem)
}

// MappingType is mapping(K => V). Quantifiers over a mapping must supply an
// explicit iterable key set; the mapping type itself
// carries no notion of iteration.
type MappingType struct {
	Key   Type
	Value Type
}

func (MappingType) typeNode() {}
func (t MappingType) String() string {
	return fmt.Sprintf("mapping(%s => %s)", t.Key.String(), t.Value.String())
}
func (t MappingType) Equal(o Type) bool {
	ot, ok := o.(MappingType)
	return ok && ot.Key.Equal(t.Key) && ot.Value.Equal(t.Value)
}

type TupleType struct{ Elements []Type }

func (TupleType) typeNode() {}
func (t TupleType) String() string {
	s := "("
	for i, e := range t.Elements {
		if i > 0 {
			s += ","
		}
		s += e.String()
	}
	return s + ")"
}
func (t TupleType) Equal(o Type) bool {
	ot, ok := o.(TupleType)
	if !ok || len(ot.Elements) != len(t.Elements) {
		return false
	}
	for i := range t.Elements {
		if !t.Elements[i].Equal(ot.Elements[i]) {
			return false
		}
	}
	return true
}

// ContractType, StructType, EnumType name a user-defined host-language
// declaration by its fully-merged identity: the declaration's host-AST node
// id, filled in by the checker once the merge (C5) has happened.
type ContractType struct {
	Name   string
	DeclID int
}

func (ContractType) typeNode()        {}
func (t ContractType) String() string { return t.Name }
func (t ContractType) Equal(o Type) bool {
	ot, ok := o.(ContractType)
	return ok && ot.DeclID == t.DeclID
}

type StructType struct {
	Name   string
	DeclID int
}

func (StructType) typeNode()        {}
func (t StructType) String() string { return t.Name }
func (t StructType) Equal(o Type) bool {
	ot, ok := o.(StructType)
	return ok && ot.DeclID == t.DeclID
}

type EnumType struct {
	Name   string
	DeclID int
}

func (EnumType) typeNode()        {}
func (t EnumType) String() string { return t.Name }
func (t EnumType) Equal(o Type) bool {
	ot, ok := o.(EnumType)
	return ok && ot.DeclID == t.DeclID
}

type FunctionType struct {
	Params  []Type
	Returns []Type
}

func (FunctionType) typeNode() {}
func (t FunctionType) String() string {
	s := "function("
	for i, p := range t.Params {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	s += ")"
	if len(t.Returns) > 0 {
		s += " returns ("
		for i, r := range t.Returns {
			if i > 0 {
				s += ","
			}
			s += r.String()
		}
		s += ")"
	}
	return s
}
func (t FunctionType) Equal(o Type) bool {
	ot, ok := o.(FunctionType)
	if !ok || len(ot.Params) != len(t.Params) || len(ot.Returns) != len(t.Returns) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(ot.Params[i]) {
			return false
		}
	}
	for i := range t.Returns {
		if !t.Returns[i].Equal(ot.Returns[i]) {
			return false
		}
	}
	return true
}

// MetaType is the type of a type, used where a Type literal itself occupies
// an expression position (e.g. the target of a cast, or a `type(C)` query).
type MetaType struct{ Of Type }

func (MetaType) typeNode()        {}
func (t MetaType) String() string { return "type(" + t.Of.String() + ")" }
func (t MetaType) Equal(o Type) bool {
	ot, ok := o.(MetaType)
	return ok && ot.Of.Equal(t.Of)
}
