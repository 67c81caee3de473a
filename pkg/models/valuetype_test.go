package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueTypeEqual_EnumSetEquality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    ValueType
		b    ValueType
		want bool
	}{
		{
			name: "same order",
			a:    EnumType("a", "b"),
			b:    EnumType("a", "b"),
			want: true,
		},
		{
			name: "order insensitive",
			a:    EnumType("a", "b"),
			b:    EnumType("b", "a"),
			want: true,
		},
		{
			name: "superset does not unify",
			a:    EnumType("a", "b"),
			b:    EnumType("a", "b", "c"),
			want: false,
		},
		{
			name: "enum never unifies with cause reason",
			a:    EnumType("a", "b"),
			b:    CauseReasonType([]EnumIDValue{{ID: 0, Label: "a"}, {ID: 1, Label: "b"}}),
			want: false,
		},
		{
			name: "duplicate labels respect multiplicity",
			a:    EnumType("a", "a"),
			b:    EnumType("a", "b"),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestValueTypeEqual_EnumWithIDs(t *testing.T) {
	t.Parallel()

	a := EnumWithIDsType([]EnumIDValue{{ID: 1, Label: "one"}, {ID: 2, Label: "two"}})
	b := EnumWithIDsType([]EnumIDValue{{ID: 2, Label: "two"}, {ID: 1, Label: "one"}})
	c := EnumWithIDsType([]EnumIDValue{{ID: 1, Label: "uno"}})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestValueTypeIsNumeric(t *testing.T) {
	t.Parallel()

	assert.True(t, IntegerType().IsNumeric())
	assert.True(t, FloatType().IsNumeric())
	assert.False(t, BooleanType().IsNumeric())
	assert.False(t, ExecutionType().IsNumeric())
}

func TestAcCommandEqual(t *testing.T) {
	t.Parallel()

	on := AcCommand{IsOn: true, Mode: AcModeCool, Temperature: 22, FanSpeed: 0, Swing: 0}

	t.Run("off states compare is_on only", func(t *testing.T) {
		t.Parallel()
		a := AcCommand{IsOn: false, Mode: AcModeHeat, Temperature: 24}
		b := AcCommand{IsOn: false, Mode: AcModeCool, Temperature: 18, Powerful: true}
		assert.True(t, a.Equal(b))
	})

	t.Run("on states compare all fields", func(t *testing.T) {
		t.Parallel()
		other := on
		other.Temperature = 23
		assert.False(t, on.Equal(other))
		assert.True(t, on.Equal(on))
	})

	t.Run("on and off never equal", func(t *testing.T) {
		t.Parallel()
		off := AcCommand{IsOn: false}
		assert.False(t, on.Equal(off))
	})
}
