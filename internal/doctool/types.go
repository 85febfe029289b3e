// Package doctool drives the external deno toolchain to enumerate the public
// API of a runtime module graph. It owns the JSON protocol types for
// `deno doc --json` output; no parsing of runtime source happens in-process.
package doctool

import "github.com/radical-ui/objection/internal/diagnostic"

// NodeKind classifies a top-level declaration.
type NodeKind string

const (
	NodeFunction  NodeKind = "function"
	NodeClass     NodeKind = "class"
	NodeEnum      NodeKind = "enum"
	NodeImport    NodeKind = "import"
	NodeModuleDoc NodeKind = "moduleDoc"
	NodeInterface NodeKind = "interface"
	NodeTypeAlias NodeKind = "typeAlias"
	NodeVariable  NodeKind = "variable"
	NodeNamespace NodeKind = "namespace"
)

// Node is one exported declaration of the runtime.
type Node struct {
	Name         string              `json:"name"`
	Kind         NodeKind            `json:"kind"`
	Location     diagnostic.Location `json:"location"`
	JsDoc        JsDoc               `json:"jsDoc"`
	InterfaceDef *InterfaceDef       `json:"interfaceDef"`
	TypeAliasDef *TypeAliasDef       `json:"typeAliasDef"`
}

// JsDoc is a declaration's doc comment: free text plus a tag list.
type JsDoc struct {
	Doc  string  `json:"doc"`
	Tags []JsTag `json:"tags"`
}

// JsTag is one doc tag. Tags the doc tool does not recognize arrive with kind
// "unsupported" and the raw text in Value; the role markers (@component,
// @feature_action_key, @feature_event_key, @feature_component_index) take
// that form.
type JsTag struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// TagUnsupported is the kind of tags carrying raw, unparsed text.
const TagUnsupported = "unsupported"

// InterfaceDef describes an interface declaration.
type InterfaceDef struct {
	Extends    []TsType      `json:"extends"`
	Methods    []MethodDef   `json:"methods"`
	Properties []PropertyDef `json:"properties"`
}

// MethodDef exists only so methods can be rejected; its shape is irrelevant.
type MethodDef struct {
	Name string `json:"name"`
}

// PropertyDef is one interface property.
type PropertyDef struct {
	Name     string              `json:"name"`
	JsDoc    JsDoc               `json:"jsDoc"`
	TsType   *TsType             `json:"tsType"`
	Optional bool                `json:"optional"`
	Location diagnostic.Location `json:"location"`
}

// TypeAliasDef describes a type alias declaration.
type TypeAliasDef struct {
	TsType     TsType   `json:"tsType"`
	TypeParams []TsType `json:"typeParams"`
}

// TsType is the recursive type expression shape. Exactly one arm is set.
type TsType struct {
	Keyword     string       `json:"keyword"`
	TypeRef     *TypeRef     `json:"typeRef"`
	Array       *TsType      `json:"array"`
	Tuple       []TsType     `json:"tuple"`
	Union       []TsType     `json:"union"`
	Literal     *Literal     `json:"literal"`
	TypeLiteral *TypeLiteral `json:"typeLiteral"`
}

// TypeRef is a symbolic reference to another declared name, possibly with
// type arguments.
type TypeRef struct {
	TypeName   string   `json:"typeName"`
	TypeParams []TsType `json:"typeParams"`
}

// Literal is a literal type. Only string literals are meaningful to the
// collector.
type Literal struct {
	Kind   string  `json:"kind"`
	String *string `json:"string"`
}

// TypeLiteral is an inline object literal type.
type TypeLiteral struct {
	Properties []PropertyDef `json:"properties"`
}
