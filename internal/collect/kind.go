// Package collect converts the runtime's parsed public API into the
// intermediate type representation, then validates it: pruning names the
// component surface never reaches, closing the dependency graph, and checking
// the structural rules the binding generator relies on.
package collect

// Kind is a node in the type algebra. It is a closed set: the concrete types
// in this file are the only implementations.
type Kind interface {
	kindNode()
}

// Dynamic is an unconstrained value, declared `unknown` in the runtime.
type Dynamic struct{}

// String is the primitive string type.
type String struct{}

// Number is the primitive number type.
type Number struct{}

// Bool is the primitive boolean type.
type Bool struct{}

// Null is the unit type.
type Null struct{}

// ActionKey is a typed token for engine-produced messages carrying a Data
// payload.
type ActionKey struct {
	Data Kind
}

// EventKey is a typed token for client-produced messages carrying a Data
// payload. Symmetric to ActionKey; the two differ only in emission naming.
type EventKey struct {
	Data Kind
}

// Ref is an unresolved symbolic reference to another declared name. Shared
// structure in the IR is expressed only through refs, keeping each definition
// an owned tree.
type Ref struct {
	Name string
}

// List is a homogeneous sequence.
type List struct {
	Of Kind
}

// Tuple is a fixed-shape sequence.
type Tuple struct {
	Items []Kind
}

// StringEnum is a closed set of string literals.
type StringEnum struct {
	Variants []string
}

// KeyedEnum is a tagged union; each variant has a literal name and a payload.
type KeyedEnum struct {
	Variants []EnumProperty
}

// Object is a record type.
type Object struct {
	Properties []ObjectProperty
}

func (Dynamic) kindNode()    {}
func (String) kindNode()     {}
func (Number) kindNode()     {}
func (Bool) kindNode()       {}
func (Null) kindNode()       {}
func (ActionKey) kindNode()  {}
func (EventKey) kindNode()   {}
func (Ref) kindNode()        {}
func (List) kindNode()       {}
func (Tuple) kindNode()      {}
func (StringEnum) kindNode() {}
func (KeyedEnum) kindNode()  {}
func (Object) kindNode()     {}

// EnumProperty is one variant of a KeyedEnum. Names are PascalCase.
type EnumProperty struct {
	Name    string
	Comment string
	Kind    Kind
}

// ObjectProperty is one property of an Object. Names are camelCase.
type ObjectProperty struct {
	Name       string
	Comment    string
	Kind       Kind
	IsOptional bool
}

// KindDefinition is a top-level entry in the IR.
type KindDefinition struct {
	Name         string
	Comment      string
	Kind         Kind
	Dependencies []string
}

// ComponentInfo associates a declared Object kind with the name of its render
// function exported from the runtime.
type ComponentInfo struct {
	KindName   string
	RenderName string
}
