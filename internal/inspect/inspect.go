// Package inspect runs the naming checks over a collected IR: every declared
// type, enum variant, and object property must use the idiomatic case for its
// role and must not collide with a reserved word of a host-language backend.
// Violations become diagnostics; they never remove an entry.
package inspect

import (
	"github.com/iancoleman/strcase"

	"github.com/radical-ui/objection/internal/collect"
	"github.com/radical-ui/objection/internal/diagnostic"
)

// rustReservedWords is the reserved-word set of the rust backend, the only
// engine target at present.
var rustReservedWords = []string{
	"as", "break", "const", "continue", "crate", "else", "enum", "extern", "false", "fn", "for", "if", "impl", "in",
	"let", "loop", "match", "mod", "move", "mut", "pub", "ref", "return", "self", "Self", "static", "struct", "super",
	"trait", "true", "type", "unsafe", "use", "where", "while", "async", "await", "dyn", "abstract", "become", "box",
	"do", "final", "macro", "override", "priv", "typeof", "unsized", "virtual", "yield", "try",
}

type nameContext int

const (
	contextType nameContext = iota
	contextProperty
	contextVariant
)

func (c nameContext) String() string {
	switch c {
	case contextType:
		return "type name"
	case contextProperty:
		return "property name"
	default:
		return "enum variant"
	}
}

// Inspector checks one collection against one reserved-word table.
type Inspector struct {
	collection    *collect.Collection
	reservedWords map[string]string
}

// New builds an inspector with the rust reserved-word table.
func New(collection *collect.Collection) *Inspector {
	reservedWords := make(map[string]string, len(rustReservedWords))
	for _, word := range rustReservedWords {
		reservedWords[word] = "rust"
	}

	return &Inspector{collection: collection, reservedWords: reservedWords}
}

// Inspect walks every surviving definition and accumulates violations on the
// list.
func (i *Inspector) Inspect(list *diagnostic.List) {
	for _, def := range i.collection.Kinds() {
		i.inspectName(def.Name, contextType, list)
		i.inspectKind(def.Kind, list)
	}
}

func (i *Inspector) inspectKind(kind collect.Kind, list *diagnostic.List) {
	switch kind := kind.(type) {
	case collect.ActionKey:
		i.inspectKind(kind.Data, list)
	case collect.EventKey:
		i.inspectKind(kind.Data, list)
	case collect.List:
		i.inspectKind(kind.Of, list)
	case collect.Tuple:
		for _, item := range kind.Items {
			i.inspectKind(item, list)
		}
	case collect.StringEnum:
		for _, name := range kind.Variants {
			i.inspectName(name, contextVariant, list)
		}
	case collect.KeyedEnum:
		for _, variant := range kind.Variants {
			i.inspectName(variant.Name, contextVariant, list)
			i.inspectKind(variant.Kind, list)
		}
	case collect.Object:
		for _, property := range kind.Properties {
			i.inspectName(property.Name, contextProperty, list)
			i.inspectKind(property.Kind, list)
		}
	}
}

func (i *Inspector) inspectName(name string, context nameContext, list *diagnostic.List) {
	var expected, expectedType string

	switch context {
	case contextType, contextVariant:
		expected = strcase.ToCamel(name)
		expectedType = "pascal case"
	case contextProperty:
		expected = strcase.ToLowerCamel(name)
		expectedType = "camel case"
	}

	if name != expected {
		list.Add(diagnostic.Start("Invalid case for ").
			Text(context).
			Text(" ").
			Code(name).
			Shift().
			Text("Expected the ").
			Text(expectedType).
			Text(" form of the word: ").
			Code(expected).
			Build())
	}

	if target, ok := i.reservedWords[name]; ok {
		list.Add(diagnostic.Start("Use of reserved ").
			Text(context).
			Text(" ").
			Code(name).
			Shift().
			Text("This word is reserved in ").
			Text(target).
			Text(", which is an engine that could be targeted").
			Build())
	}
}
