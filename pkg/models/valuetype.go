// Package models defines the public domain models and error types for
// Power Control Center.
package models

import (
	"fmt"
)

// ValueKind identifies the shape of a value flowing through the graph.
type ValueKind string

const (
	KindExecution   ValueKind = "execution"
	KindBoolean     ValueKind = "boolean"
	KindInteger     ValueKind = "integer"
	KindFloat       ValueKind = "float"
	KindString      ValueKind = "string"
	KindEnum        ValueKind = "enum"
	KindEnumWithIDs ValueKind = "enum_with_ids"
	KindCauseReason ValueKind = "cause_reason"
	KindObject      ValueKind = "object"
	KindAny         ValueKind = "any"
)

// EnumIDValue is a single (id, label) pair of an EnumWithIDs or
// CauseReason value type.
type EnumIDValue struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// ValueType is the tagged type carried by a node pin. Enum kinds carry
// their value sets; all other kinds are fully described by Kind.
type ValueType struct {
	Kind         ValueKind     `json:"kind"`
	EnumValues   []string      `json:"enum_values,omitempty"`
	EnumIDValues []EnumIDValue `json:"enum_id_values,omitempty"`
}

// Constructors for the non-enum kinds.

func ExecutionType() ValueType { return ValueType{Kind: KindExecution} }
func BooleanType() ValueType   { return ValueType{Kind: KindBoolean} }
func IntegerType() ValueType   { return ValueType{Kind: KindInteger} }
func FloatType() ValueType     { return ValueType{Kind: KindFloat} }
func StringType() ValueType    { return ValueType{Kind: KindString} }
func ObjectType() ValueType    { return ValueType{Kind: KindObject} }
func AnyType() ValueType       { return ValueType{Kind: KindAny} }

// EnumType creates an Enum value type over the given labels.
func EnumType(values ...string) ValueType {
	return ValueType{Kind: KindEnum, EnumValues: values}
}

// EnumWithIDsType creates an EnumWithIDs value type over (id, label) pairs.
func EnumWithIDsType(values []EnumIDValue) ValueType {
	return ValueType{Kind: KindEnumWithIDs, EnumIDValues: values}
}

// CauseReasonType creates the CauseReason value type. It is distinct
// from Enum and never unifies with it.
func CauseReasonType(values []EnumIDValue) ValueType {
	return ValueType{Kind: KindCauseReason, EnumIDValues: values}
}

// IsConcrete reports whether the type is not a unification variable.
func (t ValueType) IsConcrete() bool {
	return t.Kind != KindAny
}

// IsNumeric reports whether the type is Integer or Float.
func (t ValueType) IsNumeric() bool {
	return t.Kind == KindInteger || t.Kind == KindFloat
}

// Equal reports structural equality. Enum value sets compare
// order-insensitively; EnumWithIDs and CauseReason compare their
// (id, label) sets the same way.
func (t ValueType) Equal(o ValueType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindEnum:
		return sameStringSet(t.EnumValues, o.EnumValues)
	case KindEnumWithIDs, KindCauseReason:
		return sameIDSet(t.EnumIDValues, o.EnumIDValues)
	default:
		return true
	}
}

// String renders the type for error messages.
func (t ValueType) String() string {
	switch t.Kind {
	case KindEnum:
		return fmt.Sprintf("enum%v", t.EnumValues)
	case KindEnumWithIDs:
		return fmt.Sprintf("enum_with_ids(%d values)", len(t.EnumIDValues))
	default:
		return string(t.Kind)
	}
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, v := range a {
		set[v]++
	}
	for _, v := range b {
		set[v]--
		if set[v] < 0 {
			return false
		}
	}
	return true
}

func sameIDSet(a, b []EnumIDValue) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[EnumIDValue]int, len(a))
	for _, v := range a {
		set[v]++
	}
	for _, v := range b {
		set[v]--
		if set[v] < 0 {
			return false
		}
	}
	return true
}
