// Package symbols resolves the numeric ids found in a listing (handler ids,
// variable addresses, function addresses, constants) to their source names.
package symbols

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every failed lookup.
var ErrNotFound = errors.New("symbol not found")

// Variable is a named, typed slot of a class or of an object type.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function is the signature of a native function.
type Function struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Arguments []string `json:"arguments"`
}

// Resolver is the read-only symbol database used while lifting. Handler,
// variable and function lookups are total-or-error; constants and types are
// optional.
type Resolver interface {
	HandlerName(classKind, id int) (string, error)
	// Variable resolves an address inside ownerType; "" is the global scope.
	Variable(classKind int, ownerType string, address int) (Variable, error)
	VariableType(classKind int, name string) (string, bool)
	Function(address int) (Function, error)
	Constant(domain string, id int) (string, bool)
	IsPrimitiveType(name string) bool
	FString(id int) (string, bool)
}

// GlobalOwner is the owner key of class-scope variables in the data files.
const GlobalOwner = "_"

// Derived constant domains.
const (
	DomainSkill      = "SKILL"
	DomainSkillShort = "SKILL_SHORT"
	DomainAbnormal   = "ABNORMAL"
	DomainItem       = "ITEM"
	DomainNPC        = "NPC"
	DomainGMID       = "GM_ID"
)

// SkillShortDivisor scales a SKILL id to its SKILL_SHORT form.
const SkillShortDivisor = 65536

var builtinPrimitives = map[string]bool{
	"int":                true,
	"float":              true,
	"double":             true,
	"string":             true,
	"void":               true,
	"pointer":            true,
	"WayPointsType":      true,
	"WayPointDelaysType": true,
	"BOOL":               true,
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func ownerKey(ownerType string) string {
	if ownerType == "" {
		return GlobalOwner
	}
	return ownerType
}

// deriveSkillShort maps SKILL ids with level 1 to their short form.
func deriveSkillShort(skills map[int]string) map[int]string {
	short := make(map[int]string)
	for id, name := range skills {
		if id%SkillShortDivisor == 1 {
			short[(id-1)/SkillShortDivisor] = name
		}
	}
	return short
}
