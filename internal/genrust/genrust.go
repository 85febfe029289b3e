// Package genrust emits the rust engine bindings for a validated collection:
// one type per IR definition plus a builder surface that makes component
// trees constructible from application code. Output order is sorted by
// declared name so emission is reproducible.
package genrust

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/radical-ui/objection/internal/collect"
	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/logging"
)

// constructorArgumentLimit bounds how many positional parameters a generated
// `new` may take. Structs needing more are built with setters only.
const constructorArgumentLimit = 3

// KindContext distinguishes the four uses of one kind during emission: as a
// struct-field type, as a call-signature parameter type, as the conversion
// applied to a parameter when it becomes a record-literal key, and as the
// conversion applied to an already-built value.
type KindContext int

const (
	KindContextType KindContext = iota
	KindContextParam
	KindContextKey
	KindContextValue
)

// Generator walks a collection and accumulates rust source text. Per-node
// failures land on the diagnostic list and emission continues, so authors see
// every issue at once.
type Generator struct {
	collection *collect.Collection
	list       *diagnostic.List
	names      map[string]bool
	out        strings.Builder
}

// New builds a generator over a validated collection.
func New(collection *collect.Collection, list *diagnostic.List) *Generator {
	return &Generator{
		collection: collection,
		list:       list,
		names:      map[string]bool{},
	}
}

// Generate emits the component index followed by every definition, sorted by
// name.
func (g *Generator) Generate() {
	log := logging.Sugar(logging.CategoryGenerate)

	g.genIndex()

	for _, def := range g.collection.Kinds() {
		if def.Name == g.collection.ComponentIndexName() {
			continue
		}

		log.Debugf("generating %s", def.Name)

		switch def.Kind.(type) {
		case collect.StringEnum, collect.KeyedEnum, collect.Object:
			g.emitKind(def.Name, def.Comment, def.Kind, KindContextType, "")

		default:
			if g.hasItem(def.Name) {
				continue
			}

			text, err := g.emitKind(def.Name, "", def.Kind, KindContextType, "")
			if err != nil {
				g.list.AddError(err)
				continue
			}

			var item strings.Builder
			writeDocComment(&item, def.Comment)
			fmt.Fprintf(&item, "pub type %s = %s;\n\n", def.Name, text)
			g.addItem(def.Name, item.String())
		}
	}
}

// Output returns the emitted source. A brace imbalance means the text cannot
// be valid host source; that raises a diagnostic, but the raw text is still
// returned for debugging.
func (g *Generator) Output() string {
	text := g.out.String()

	if strings.Count(text, "{") != strings.Count(text, "}") {
		g.list.Add(diagnostic.Start("Invalid rust code was generated. This is a bug.").
			Shift().
			Text("Continuing on with the invalid code so that it can be debugged").
			Build())
	}

	return text
}

// genIndex emits the component index: a tagged union with one boxed variant
// per component kind, conversion impls for every component, and a value
// serializer. Variants are boxed so the union stays pointer-sized no matter
// how large an individual component is.
func (g *Generator) genIndex() {
	indexName := g.collection.ComponentIndexName()
	if indexName == "" {
		logging.Sugar(logging.CategoryGenerate).Error("no component index was found during rust code gen; this indicates a failure in the checking step")
		return
	}

	components := g.collection.Components()

	var item strings.Builder
	writeDocComment(&item, g.collection.Comment(indexName))
	item.WriteString("#[derive(Debug, serde::Serialize, serde::Deserialize)]\n")
	item.WriteString("#[serde(tag = \"type\", content = \"def\")]\n")
	fmt.Fprintf(&item, "pub enum %s {\n", indexName)
	for _, component := range components {
		fmt.Fprintf(&item, "    %s(Box<%s>),\n", component.KindName, component.KindName)
	}
	item.WriteString("}\n\n")

	fmt.Fprintf(&item, "impl %s {\n", indexName)
	item.WriteString("    pub fn to_value(&self) -> serde_json::Value {\n")
	item.WriteString("        serde_json::to_value(self).expect(\"a component index is always representable as a value\")\n")
	item.WriteString("    }\n")
	item.WriteString("}\n\n")

	fmt.Fprintf(&item, "impl objection::IntoComponentIndex for %s {\n", indexName)
	fmt.Fprintf(&item, "    type Index = %s;\n\n", indexName)
	fmt.Fprintf(&item, "    fn into_component_index(self) -> %s {\n", indexName)
	item.WriteString("        self\n")
	item.WriteString("    }\n")
	item.WriteString("}\n\n")

	for _, component := range components {
		fmt.Fprintf(&item, "impl objection::IntoComponentIndex for %s {\n", component.KindName)
		fmt.Fprintf(&item, "    type Index = %s;\n\n", indexName)
		fmt.Fprintf(&item, "    fn into_component_index(self) -> %s {\n", indexName)
		fmt.Fprintf(&item, "        %s::%s(Box::new(self))\n", indexName, component.KindName)
		item.WriteString("    }\n")
		item.WriteString("}\n\n")
	}

	g.addItem(indexName, item.String())
}

// emitKind renders one kind for one context. contextName names any anonymous
// nested types this kind forces into existence; ident is the variable the
// key/value conversions apply to.
func (g *Generator) emitKind(contextName string, comment string, kind collect.Kind, kctx KindContext, ident string) (string, error) {
	switch kind := kind.(type) {
	case collect.Dynamic:
		switch kctx {
		case KindContextType, KindContextParam:
			return "serde_json::Value", nil
		case KindContextKey:
			return "", diagnostic.Start("A dynamic value cannot be constructed via a constructor key").
				Shift().
				Text("Encountered while generating ").
				Code(contextName).
				Build().
				Error()
		default:
			return ident, nil
		}

	case collect.String:
		switch kctx {
		case KindContextType:
			return "String", nil
		case KindContextParam:
			return "impl Into<String>", nil
		case KindContextKey:
			return ident + ".into()", nil
		default:
			return ident, nil
		}

	case collect.Number:
		return g.primitive("f64", kctx, ident), nil

	case collect.Bool:
		return g.primitive("bool", kctx, ident), nil

	case collect.Null:
		return g.primitive("()", kctx, ident), nil

	case collect.ActionKey:
		inner, err := g.emitKind(contextName+"ActionData", "", kind.Data, KindContextType, "")
		if err != nil {
			return "", err
		}
		return g.primitive(fmt.Sprintf("objection::ActionKey<%s>", inner), kctx, ident), nil

	case collect.EventKey:
		inner, err := g.emitKind(contextName+"EventData", "", kind.Data, KindContextType, "")
		if err != nil {
			return "", err
		}
		return g.primitive(fmt.Sprintf("objection::EventKey<%s>", inner), kctx, ident), nil

	case collect.Ref:
		if kind.Name == g.collection.ComponentIndexName() {
			switch kctx {
			case KindContextParam:
				return fmt.Sprintf("impl objection::IntoComponentIndex<Index = %s>", kind.Name), nil
			case KindContextKey:
				return ident + ".into_component_index()", nil
			}
		}
		return g.primitive(kind.Name, kctx, ident), nil

	case collect.List:
		inner, err := g.emitKind(contextName+"Item", "", kind.Of, KindContextType, "")
		if err != nil {
			return "", err
		}
		return g.primitive(fmt.Sprintf("Vec<%s>", inner), kctx, ident), nil

	case collect.Tuple:
		items := make([]string, 0, len(kind.Items))
		for index, item := range kind.Items {
			inner, err := g.emitKind(fmt.Sprintf("%sItem%d", contextName, index), "", item, KindContextType, "")
			if err != nil {
				return "", err
			}
			items = append(items, inner)
		}
		return g.primitive("("+strings.Join(items, ", ")+")", kctx, ident), nil

	case collect.StringEnum:
		if !g.hasItem(contextName) {
			g.genStringEnum(contextName, comment, kind)
		}
		return g.primitive(contextName, kctx, ident), nil

	case collect.KeyedEnum:
		if !g.hasItem(contextName) {
			g.genKeyedEnum(contextName, comment, kind)
		}
		return g.primitive(contextName, kctx, ident), nil

	case collect.Object:
		if !g.hasItem(contextName) {
			g.genStruct(contextName, comment, kind)
		}
		return g.primitive(contextName, kctx, ident), nil
	}

	return "", fmt.Errorf("unhandled kind while generating %s", contextName)
}

// primitive covers the kinds whose four context forms collapse: the type text
// serves type and param positions, and values pass through untouched.
func (g *Generator) primitive(typeText string, kctx KindContext, ident string) string {
	switch kctx {
	case KindContextType, KindContextParam:
		return typeText
	default:
		return ident
	}
}

func (g *Generator) hasItem(name string) bool {
	return g.names[name]
}

func (g *Generator) addItem(name string, text string) {
	g.names[name] = true
	g.out.WriteString(text)
}

func (g *Generator) genStringEnum(contextName string, comment string, kind collect.StringEnum) {
	var item strings.Builder
	writeDocComment(&item, comment)
	item.WriteString("#[derive(Debug, Clone, Copy, PartialEq, Eq, serde::Serialize, serde::Deserialize)]\n")
	fmt.Fprintf(&item, "pub enum %s {\n", contextName)
	for _, variant := range kind.Variants {
		fmt.Fprintf(&item, "    %s,\n", variant)
	}
	item.WriteString("}\n\n")

	g.addItem(contextName, item.String())
}

func (g *Generator) genKeyedEnum(contextName string, comment string, kind collect.KeyedEnum) {
	// Reserve the name up front so recursive payload emission cannot collide
	// with it.
	g.names[contextName] = true

	var item strings.Builder
	writeDocComment(&item, comment)
	item.WriteString("#[derive(Debug, serde::Serialize, serde::Deserialize)]\n")
	item.WriteString("#[serde(tag = \"type\", content = \"def\")]\n")
	fmt.Fprintf(&item, "pub enum %s {\n", contextName)

	for _, variant := range kind.Variants {
		payload, err := g.emitKind(contextName+variant.Name, variant.Comment, variant.Kind, KindContextType, "")
		if err != nil {
			g.list.AddError(err)
			continue
		}

		writeIndentedDocComment(&item, "    ", variant.Comment)
		fmt.Fprintf(&item, "    %s(%s),\n", variant.Name, payload)
	}

	item.WriteString("}\n\n")
	g.out.WriteString(item.String())
}

func (g *Generator) genStruct(contextName string, comment string, kind collect.Object) {
	g.names[contextName] = true

	var fields strings.Builder
	var methods strings.Builder

	if constructor, ok := g.constructorInfo(contextName, "", kind.Properties); ok {
		writeIndentedDocComment(&methods, "    ", fmt.Sprintf("Construct a new %s.\n\n%s", contextName, constructor.comment))
		fmt.Fprintf(&methods, "    pub fn new(%s) -> %s {\n", constructor.arguments, contextName)
		fmt.Fprintf(&methods, "        %s { %s }\n", contextName, constructor.body)
		methods.WriteString("    }\n\n")
	}

	for _, property := range kind.Properties {
		fieldName := strcase.ToSnake(property.Name)
		propertyContextName := structPropertyContextName(contextName, property.Name)

		fieldType, err := g.emitKind(propertyContextName, property.Comment, property.Kind, KindContextType, "")
		if err != nil {
			g.list.AddError(err)
			continue
		}

		storedType := fieldType
		if property.IsOptional {
			storedType = fmt.Sprintf("Option<%s>", fieldType)
		}

		writeIndentedDocComment(&fields, "    ", property.Comment)
		fmt.Fprintf(&fields, "    pub %s: %s,\n", fieldName, storedType)

		g.genSetters(contextName, property, fieldName, propertyContextName, fieldType, &methods)
	}

	var item strings.Builder
	writeDocComment(&item, comment)
	item.WriteString("#[derive(Debug, serde::Serialize, serde::Deserialize)]\n")
	item.WriteString("#[serde(rename_all = \"camelCase\")]\n")
	fmt.Fprintf(&item, "pub struct %s {\n%s}\n\n", contextName, fields.String())

	fmt.Fprintf(&item, "impl %s {\n%s}\n\n", contextName, strings.TrimSuffix(methods.String(), "\n"))

	g.out.WriteString(item.String())
}

// genSetters emits the chainable setter surface for one property: the plain
// setter, the bool pair, or the flattened object pair, depending on what the
// property's kind resolves to.
func (g *Generator) genSetters(structName string, property collect.ObjectProperty, fieldName string, propertyContextName string, fieldType string, methods *strings.Builder) {
	resolved, resolvedName := g.collection.ResolveKind(property.Kind)

	if _, isBool := resolved.(collect.Bool); isBool {
		trueValue := g.wrapOptional("true", property.IsOptional)
		fmt.Fprintf(methods, "    pub fn %s(mut self) -> %s {\n", fieldName, structName)
		fmt.Fprintf(methods, "        self.%s = %s;\n", fieldName, trueValue)
		methods.WriteString("        self\n")
		methods.WriteString("    }\n\n")

		fmt.Fprintf(methods, "    pub fn %s_if(mut self, %s: bool) -> %s {\n", fieldName, fieldName, structName)
		fmt.Fprintf(methods, "        self.%s = %s;\n", fieldName, g.wrapOptional(fieldName, property.IsOptional))
		methods.WriteString("        self\n")
		methods.WriteString("    }\n\n")
		return
	}

	if object, isObject := resolved.(collect.Object); isObject && !g.isComponentIndexRef(property.Kind) {
		constructionType := resolvedName
		if constructionType == "" {
			constructionType = propertyContextName
		}

		if constructor, ok := g.constructorInfo(constructionType, fieldName, object.Properties); ok {
			fmt.Fprintf(methods, "    pub fn %s(mut self, %s) -> %s {\n", fieldName, constructor.arguments, structName)
			construction := fmt.Sprintf("%s { %s }", constructionType, constructor.body)
			fmt.Fprintf(methods, "        self.%s = %s;\n", fieldName, g.wrapOptional(construction, property.IsOptional))
			methods.WriteString("        self\n")
			methods.WriteString("    }\n\n")

			fmt.Fprintf(methods, "    pub fn %s_full(mut self, %s: %s) -> %s {\n", fieldName, fieldName, fieldType, structName)
			fmt.Fprintf(methods, "        self.%s = %s;\n", fieldName, g.wrapOptional(fieldName, property.IsOptional))
			methods.WriteString("        self\n")
			methods.WriteString("    }\n\n")
			return
		}
	}

	paramType, err := g.emitKind(propertyContextName, property.Comment, property.Kind, KindContextParam, "")
	if err != nil {
		g.list.AddError(err)
		return
	}

	keyExpr, err := g.emitKind(propertyContextName, property.Comment, property.Kind, KindContextKey, fieldName)
	if err != nil {
		// The param cannot be converted into the stored position; fall back
		// to accepting the field type directly.
		paramType = fieldType
		keyExpr = fieldName
	}

	fmt.Fprintf(methods, "    pub fn %s(mut self, %s: %s) -> %s {\n", fieldName, fieldName, paramType, structName)
	fmt.Fprintf(methods, "        self.%s = %s;\n", fieldName, g.wrapOptional(keyExpr, property.IsOptional))
	methods.WriteString("        self\n")
	methods.WriteString("    }\n\n")
}

func (g *Generator) wrapOptional(expr string, isOptional bool) string {
	if isOptional {
		return fmt.Sprintf("Some(%s)", expr)
	}
	return expr
}

// isComponentIndexRef reports whether a property kind references the
// component index by name. Index-typed properties get the capability-based
// setter, never a flattened one.
func (g *Generator) isComponentIndexRef(kind collect.Kind) bool {
	ref, ok := kind.(collect.Ref)
	return ok && ref.Name == g.collection.ComponentIndexName()
}

type constructorInfo struct {
	arguments string
	body      string
	comment   string
}

// constructorInfo builds the positional-constructor pieces for a property
// list: non-optional properties become parameters in declaration order,
// optional properties initialize to absent. Returns ok=false when the
// non-optional count exceeds the limit or a parameter cannot be emitted.
func (g *Generator) constructorInfo(structName string, argumentPrefix string, properties []collect.ObjectProperty) (constructorInfo, bool) {
	var arguments []string
	var body []string
	var comment strings.Builder
	requiredCount := 0

	for _, property := range properties {
		fieldName := strcase.ToSnake(property.Name)

		if property.IsOptional {
			body = append(body, fieldName+": None")
			continue
		}

		if requiredCount == constructorArgumentLimit {
			return constructorInfo{}, false
		}

		argumentName := fieldName
		if argumentPrefix != "" {
			argumentName = argumentPrefix + "_" + fieldName
		}

		propertyContextName := structPropertyContextName(structName, property.Name)

		paramType, err := g.emitKind(propertyContextName, property.Comment, property.Kind, KindContextParam, "")
		if err != nil {
			g.list.AddError(err)
			return constructorInfo{}, false
		}

		keyExpr, err := g.emitKind(propertyContextName, property.Comment, property.Kind, KindContextKey, argumentName)
		if err != nil {
			g.list.AddError(err)
			return constructorInfo{}, false
		}

		if keyExpr == fieldName {
			body = append(body, fieldName)
		} else {
			body = append(body, fieldName+": "+keyExpr)
		}
		arguments = append(arguments, argumentName+": "+paramType)

		if property.Comment != "" {
			fmt.Fprintf(&comment, "Argument `%s`: %s\n\n", property.Name, property.Comment)
		}

		requiredCount++
	}

	return constructorInfo{
		arguments: strings.Join(arguments, ", "),
		body:      strings.Join(body, ", "),
		comment:   strings.TrimSuffix(comment.String(), "\n\n"),
	}, true
}

// structPropertyContextName derives the anonymous-type name for a property:
// property names are camel case, type names must be pascal case.
func structPropertyContextName(structContextName string, propertyName string) string {
	return structContextName + strcase.ToCamel(propertyName)
}

func writeDocComment(out *strings.Builder, comment string) {
	writeIndentedDocComment(out, "", comment)
}

func writeIndentedDocComment(out *strings.Builder, indent string, comment string) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return
	}

	for _, line := range strings.Split(comment, "\n") {
		if line == "" {
			fmt.Fprintf(out, "%s///\n", indent)
		} else {
			fmt.Fprintf(out, "%s/// %s\n", indent, line)
		}
	}
}
