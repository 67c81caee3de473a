package engine

import (
	"fmt"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// anyKinds is the default constraint of an Any pin: every concrete kind
// except Execution and CauseReason.
var anyKinds = []models.ValueKind{
	models.KindBoolean,
	models.KindInteger,
	models.KindFloat,
	models.KindString,
	models.KindEnum,
	models.KindEnumWithIDs,
	models.KindObject,
}

// unifier tracks a union-find over the Any pins of one graph. Concrete
// types become roots; conflicting roots are a type mismatch.
type unifier struct {
	parent   []int
	concrete []*models.ValueType
	allowed  []map[models.ValueKind]bool
	pinVar   map[string]int
}

func newUnifier() *unifier {
	return &unifier{pinVar: make(map[string]int)}
}

func pinKey(nodeID, pinID string) string {
	return nodeID + "/" + pinID
}

// varFor returns the variable index of an Any pin, creating it with the
// pin's allowed-kind constraint on first sight.
func (u *unifier) varFor(nodeID, pinID string, allowedKinds []models.ValueKind) int {
	key := pinKey(nodeID, pinID)
	if v, ok := u.pinVar[key]; ok {
		return v
	}
	kinds := allowedKinds
	if len(kinds) == 0 {
		kinds = anyKinds
	}
	set := make(map[models.ValueKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	v := len(u.parent)
	u.parent = append(u.parent, v)
	u.concrete = append(u.concrete, nil)
	u.allowed = append(u.allowed, set)
	u.pinVar[key] = v
	return v
}

func (u *unifier) find(v int) int {
	for u.parent[v] != v {
		u.parent[v] = u.parent[u.parent[v]]
		v = u.parent[v]
	}
	return v
}

// bind assigns a concrete type to a variable's class. Returns an error
// when the type violates the class constraint or an earlier binding.
func (u *unifier) bind(v int, t models.ValueType) error {
	root := u.find(v)
	if !u.allowed[root][t.Kind] {
		return fmt.Errorf("type %s is not allowed here", t)
	}
	if u.concrete[root] != nil {
		if !u.concrete[root].Equal(t) {
			return fmt.Errorf("type %s conflicts with previously established %s", t, *u.concrete[root])
		}
		return nil
	}
	bound := t
	u.concrete[root] = &bound
	return nil
}

// union merges two variables' classes, intersecting their constraints.
func (u *unifier) union(a, b int) error {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return nil
	}

	merged := make(map[models.ValueKind]bool)
	for k := range u.allowed[ra] {
		if u.allowed[rb][k] {
			merged[k] = true
		}
	}
	if len(merged) == 0 {
		return fmt.Errorf("pins have no common allowed type")
	}

	ca, cb := u.concrete[ra], u.concrete[rb]
	if ca != nil && cb != nil && !ca.Equal(*cb) {
		return fmt.Errorf("type %s conflicts with previously established %s", *cb, *ca)
	}

	u.parent[rb] = ra
	u.allowed[ra] = merged
	if ca == nil {
		u.concrete[ra] = cb
	}
	if u.concrete[ra] != nil && !merged[u.concrete[ra].Kind] {
		return fmt.Errorf("type %s is not allowed here", *u.concrete[ra])
	}
	return nil
}
