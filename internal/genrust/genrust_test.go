package genrust

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radical-ui/objection/internal/collect"
	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/doctool"
)

var testLocation = diagnostic.Location{Filename: "file:///runtime/mod.tsx", Line: 1, Col: 0}

func keyword(word string) *doctool.TsType {
	return &doctool.TsType{Keyword: word}
}

func typeRef(name string) *doctool.TsType {
	return &doctool.TsType{TypeRef: &doctool.TypeRef{TypeName: name}}
}

func stringLiteral(value string) doctool.TsType {
	return doctool.TsType{Literal: &doctool.Literal{Kind: "string", String: &value}}
}

func keyedVariant(name string, def doctool.TsType) doctool.TsType {
	return doctool.TsType{TypeLiteral: &doctool.TypeLiteral{Properties: []doctool.PropertyDef{
		{Name: "type", TsType: &doctool.TsType{Literal: &doctool.Literal{Kind: "string", String: &name}}, Location: testLocation},
		{Name: "def", TsType: &def, Location: testLocation},
	}}}
}

func unsupportedTag(value string) doctool.JsTag {
	return doctool.JsTag{Kind: doctool.TagUnsupported, Value: value}
}

func interfaceNode(name string, tags []doctool.JsTag, properties ...doctool.PropertyDef) doctool.Node {
	return doctool.Node{
		Name:         name,
		Kind:         doctool.NodeInterface,
		Location:     testLocation,
		JsDoc:        doctool.JsDoc{Tags: tags},
		InterfaceDef: &doctool.InterfaceDef{Properties: properties},
	}
}

func functionNode(name string) doctool.Node {
	return doctool.Node{Name: name, Kind: doctool.NodeFunction, Location: testLocation}
}

func property(name string, tsType *doctool.TsType) doctool.PropertyDef {
	return doctool.PropertyDef{Name: name, TsType: tsType, Location: testLocation}
}

func optionalProperty(name string, tsType *doctool.TsType) doctool.PropertyDef {
	return doctool.PropertyDef{Name: name, TsType: tsType, Optional: true, Location: testLocation}
}

// testRuntime builds and validates a collection from the given extra nodes
// plus a standard index and component set.
func testRuntime(t *testing.T, extra ...doctool.Node) *collect.Collection {
	nodes := []doctool.Node{
		{
			Name:     "Component",
			Kind:     doctool.NodeTypeAlias,
			Location: testLocation,
			JsDoc:    doctool.JsDoc{Tags: []doctool.JsTag{unsupportedTag("@feature_component_index")}},
			TypeAliasDef: &doctool.TypeAliasDef{TsType: doctool.TsType{Union: []doctool.TsType{
				keyedVariant("Card", *typeRef("Card")),
				keyedVariant("Label", *typeRef("Label")),
			}}},
		},
		interfaceNode("Card", []doctool.JsTag{unsupportedTag("@component")},
			optionalProperty("body", typeRef("Component")),
			property("color", typeRef("ColorType")),
		),
		interfaceNode("Label", []doctool.JsTag{unsupportedTag("@component")},
			property("text", keyword("string")),
			optionalProperty("bold", keyword("boolean")),
		),
		{
			Name:         "ColorType",
			Kind:         doctool.NodeTypeAlias,
			Location:     testLocation,
			TypeAliasDef: &doctool.TypeAliasDef{TsType: doctool.TsType{Union: []doctool.TsType{stringLiteral("Primary"), stringLiteral("Fore")}}},
		},
		functionNode("start"),
		functionNode("CardRender"),
		functionNode("LabelRender"),
	}
	nodes = append(nodes, extra...)

	collection := collect.NewCollection()
	collection.Collect(nodes)
	collection.CheckComponents()
	require.Empty(t, collection.Errors())
	return collection
}

func generate(t *testing.T, collection *collect.Collection) (string, *diagnostic.List) {
	t.Helper()
	list := diagnostic.NewList()
	generator := New(collection, list)
	generator.Generate()
	return generator.Output(), list
}

func TestGenerateIsStable(t *testing.T) {
	collection := testRuntime(t)

	first, firstList := generate(t, collection)
	second, secondList := generate(t, collection)

	assert.Equal(t, first, second)
	assert.Equal(t, 0, firstList.Len())
	assert.Equal(t, 0, secondList.Len())
}

func TestGenerateIndexIsBoxed(t *testing.T) {
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub enum Component {")
	assert.Contains(t, output, "Card(Box<Card>),")
	assert.Contains(t, output, "Label(Box<Label>),")
	assert.Contains(t, output, "#[serde(tag = \"type\", content = \"def\")]")
	assert.Contains(t, output, "pub fn to_value(&self) -> serde_json::Value")
}

func TestGenerateIndexConversions(t *testing.T) {
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	assert.Contains(t, output, "impl objection::IntoComponentIndex for Card {")
	assert.Contains(t, output, "Component::Card(Box::new(self))")
	// The index converts into itself so builders can accept either form.
	assert.Contains(t, output, "impl objection::IntoComponentIndex for Component {")
}

func TestGenerateStructSurface(t *testing.T) {
	// One required property yields a single-argument constructor that
	// initializes the optional property to absent.
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	assert.Contains(t, output, "#[serde(rename_all = \"camelCase\")]\n"+"pub struct Card {")
	assert.Contains(t, output, "pub body: Option<Component>,")
	assert.Contains(t, output, "pub color: ColorType,")
	assert.Contains(t, output, "pub fn new(color: ColorType) -> Card {")
	assert.Contains(t, output, "Card { body: None, color }")
}

func TestGenerateComponentIndexProperty(t *testing.T) {
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	// Index-typed properties accept the conversion capability, not the raw
	// union, and get no flattened setter.
	assert.Contains(t, output, "pub fn body(mut self, body: impl objection::IntoComponentIndex<Index = Component>) -> Card {")
	assert.Contains(t, output, "self.body = Some(body.into_component_index());")
	assert.NotContains(t, output, "pub fn body_full")
}

func TestGenerateStringSetterTakesInto(t *testing.T) {
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub fn text(mut self, text: impl Into<String>) -> Label {")
	assert.Contains(t, output, "self.text = text.into();")
}

func TestGenerateBoolSetters(t *testing.T) {
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub fn bold(mut self) -> Label {\n        self.bold = Some(true);")
	assert.Contains(t, output, "pub fn bold_if(mut self, bold: bool) -> Label {\n        self.bold = Some(bold);")
}

func TestGenerateStringEnum(t *testing.T) {
	collection := testRuntime(t)
	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub enum ColorType {")
	assert.Contains(t, output, "    Primary,\n    Fore,\n")
}

func TestGenerateConstructorBoundary(t *testing.T) {
	// A `new` exists iff the number of non-optional properties is at
	// most three.
	collection := testRuntime(t,
		interfaceNode("Wide", []doctool.JsTag{unsupportedTag("@component Render4")},
			property("a", keyword("string")),
			property("b", keyword("string")),
			property("c", keyword("string")),
			property("d", keyword("string")),
		),
		functionNode("Render4"),
		interfaceNode("Narrow", []doctool.JsTag{unsupportedTag("@component Render3")},
			property("a", keyword("string")),
			property("b", keyword("string")),
			property("c", keyword("string")),
		),
		functionNode("Render3"),
	)

	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub struct Wide {")
	assert.NotContains(t, output, "pub fn new(a: impl Into<String>, b: impl Into<String>, c: impl Into<String>, d: impl Into<String>)")

	// Exactly three required properties still get a constructor.
	require.True(t, strings.Contains(output, "pub fn new(a: impl Into<String>, b: impl Into<String>, c: impl Into<String>) -> Narrow {"))
}

func TestGenerateFlattenedObjectSetter(t *testing.T) {
	collection := testRuntime(t,
		interfaceNode("Header", []doctool.JsTag{unsupportedTag("@component")},
			optionalProperty("badge", typeRef("Badge")),
		),
		interfaceNode("Badge", nil,
			property("label", keyword("string")),
			optionalProperty("count", keyword("number")),
		),
		functionNode("HeaderRender"),
	)

	output, _ := generate(t, collection)

	// The flattened setter takes the nested constructor arguments directly,
	// prefixed to avoid collisions, and builds the value inline.
	assert.Contains(t, output, "pub fn badge(mut self, badge_label: impl Into<String>) -> Header {")
	assert.Contains(t, output, "self.badge = Some(Badge { label: badge_label.into(), count: None });")
	assert.Contains(t, output, "pub fn badge_full(mut self, badge: Badge) -> Header {")
	assert.Contains(t, output, "self.badge = Some(badge);")
}

func TestGenerateAliases(t *testing.T) {
	collection := testRuntime(t,
		interfaceNode("Grid", []doctool.JsTag{unsupportedTag("@component")},
			property("cells", &doctool.TsType{Array: typeRef("Component")}),
			property("size", typeRef("Size")),
		),
		doctool.Node{
			Name:         "Size",
			Kind:         doctool.NodeTypeAlias,
			Location:     testLocation,
			TypeAliasDef: &doctool.TypeAliasDef{TsType: doctool.TsType{Tuple: []doctool.TsType{*keyword("number"), *keyword("number")}}},
		},
		functionNode("GridRender"),
	)

	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub type Size = (f64, f64);")
	assert.Contains(t, output, "pub cells: Vec<Component>,")
}

func TestGenerateKeyedEnum(t *testing.T) {
	collection := testRuntime(t,
		interfaceNode("Switcher", []doctool.JsTag{unsupportedTag("@component")},
			property("mode", typeRef("Mode")),
		),
		doctool.Node{
			Name:     "Mode",
			Kind:     doctool.NodeTypeAlias,
			Location: testLocation,
			TypeAliasDef: &doctool.TypeAliasDef{TsType: doctool.TsType{Union: []doctool.TsType{
				keyedVariant("Fixed", *keyword("number")),
				keyedVariant("Auto", *keyword("null")),
			}}},
		},
		functionNode("SwitcherRender"),
	)

	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub enum Mode {")
	assert.Contains(t, output, "    Fixed(f64),")
	assert.Contains(t, output, "    Auto(()),")
}

func TestGenerateActionAndEventKeys(t *testing.T) {
	nodes := []doctool.Node{
		{
			Name:         "ActionKey",
			Kind:         doctool.NodeTypeAlias,
			Location:     testLocation,
			JsDoc:        doctool.JsDoc{Tags: []doctool.JsTag{unsupportedTag("@feature_action_key")}},
			TypeAliasDef: &doctool.TypeAliasDef{TsType: *keyword("string")},
		},
		{
			Name:         "EventKey",
			Kind:         doctool.NodeTypeAlias,
			Location:     testLocation,
			JsDoc:        doctool.JsDoc{Tags: []doctool.JsTag{unsupportedTag("@feature_event_key")}},
			TypeAliasDef: &doctool.TypeAliasDef{TsType: *keyword("string")},
		},
		{
			Name:     "Component",
			Kind:     doctool.NodeTypeAlias,
			Location: testLocation,
			JsDoc:    doctool.JsDoc{Tags: []doctool.JsTag{unsupportedTag("@feature_component_index")}},
			TypeAliasDef: &doctool.TypeAliasDef{TsType: doctool.TsType{Union: []doctool.TsType{
				keyedVariant("Button", *typeRef("Button")),
			}}},
		},
		interfaceNode("Button", []doctool.JsTag{unsupportedTag("@component")},
			property("onClick", &doctool.TsType{TypeRef: &doctool.TypeRef{TypeName: "ActionKey", TypeParams: []doctool.TsType{*keyword("null")}}}),
			optionalProperty("onHover", &doctool.TsType{TypeRef: &doctool.TypeRef{TypeName: "EventKey", TypeParams: []doctool.TsType{*keyword("number")}}}),
		),
		functionNode("start"),
		functionNode("ButtonRender"),
	}

	collection := collect.NewCollection()
	collection.Collect(nodes)
	collection.CheckComponents()
	require.Empty(t, collection.Errors())

	output, _ := generate(t, collection)

	assert.Contains(t, output, "pub on_click: objection::ActionKey<()>,")
	assert.Contains(t, output, "pub on_hover: Option<objection::EventKey<f64>>,")
}

func TestOutputBalanceDiagnostic(t *testing.T) {
	list := diagnostic.NewList()
	generator := New(collect.NewCollection(), list)
	generator.out.WriteString("pub struct Broken {")

	text := generator.Output()
	assert.Equal(t, "pub struct Broken {", text)
	assert.Equal(t, 1, list.Len())
}
