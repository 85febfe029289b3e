package collect

import (
	"fmt"

	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/doctool"
)

// Conversion is the result of mapping a type expression into the algebra: the
// kind itself plus the names it references.
type Conversion struct {
	Kind         Kind
	Dependencies []string
}

// convertContext carries the role singletons the conversion rules key on.
type convertContext struct {
	actionKeyTypeName string
	eventKeyTypeName  string
}

// convertInterface maps an interface declaration to an Object kind. Extension
// clauses and methods are rejected; every property must carry a type.
func convertInterface(def *doctool.InterfaceDef, location diagnostic.Location, ctx convertContext) (Conversion, error) {
	if len(def.Extends) > 0 {
		return Conversion{}, diagnostic.Start("Interface extensions are not supported, instead specify all properties in the interface body").
			Shift().
			Location(location).
			Build().
			Error()
	}

	if len(def.Methods) > 0 {
		return Conversion{}, diagnostic.Start("Methods are not supported in exported interfaces. If this is related to private client-only functionality, consider inlining the methods in the render function").
			Shift().
			Location(location).
			Build().
			Error()
	}

	var dependencies []string
	properties := make([]ObjectProperty, 0, len(def.Properties))

	for _, property := range def.Properties {
		if property.TsType == nil {
			return Conversion{}, diagnostic.Start("Interface property does not have an associated type").
				Shift().
				Location(property.Location).
				Build().
				Error()
		}

		conversion, err := convertTsType(property.TsType, property.Location, ctx)
		if err != nil {
			return Conversion{}, diagnostic.Start("Failed to convert interface property ").
				Code(property.Name).
				Shift().
				Location(property.Location).
				Build().
				Context(err)
		}

		dependencies = append(dependencies, conversion.Dependencies...)
		properties = append(properties, ObjectProperty{
			Name:       property.Name,
			Comment:    property.JsDoc.Doc,
			Kind:       conversion.Kind,
			IsOptional: property.Optional,
		})
	}

	return Conversion{Kind: Object{Properties: properties}, Dependencies: dependencies}, nil
}

// convertTsType maps a type expression to the algebra, applying the closed
// set of rules: keywords, key references, symbolic references, collections,
// homogeneous unions.
func convertTsType(tsType *doctool.TsType, location diagnostic.Location, ctx convertContext) (Conversion, error) {
	if tsType.Keyword != "" {
		return convertKeyword(tsType.Keyword, location)
	}

	if tsType.TypeRef != nil {
		return convertTypeRef(tsType.TypeRef, location, ctx)
	}

	if tsType.Array != nil {
		inner, err := convertTsType(tsType.Array, location, ctx)
		if err != nil {
			return Conversion{}, err
		}

		return Conversion{Kind: List{Of: inner.Kind}, Dependencies: inner.Dependencies}, nil
	}

	if tsType.Tuple != nil {
		var dependencies []string
		items := make([]Kind, 0, len(tsType.Tuple))

		for index := range tsType.Tuple {
			inner, err := convertTsType(&tsType.Tuple[index], location, ctx)
			if err != nil {
				return Conversion{}, fmt.Errorf("failed to convert tuple: %w", err)
			}

			items = append(items, inner.Kind)
			dependencies = append(dependencies, inner.Dependencies...)
		}

		return Conversion{Kind: Tuple{Items: items}, Dependencies: dependencies}, nil
	}

	if tsType.Union != nil {
		return convertUnion(tsType.Union, location, ctx)
	}

	if tsType.TypeLiteral != nil {
		return Conversion{}, diagnostic.Start("Object literals are not supported for types. Use an interface instead.").
			Shift().
			Location(location).
			Build().
			Error()
	}

	return Conversion{}, diagnostic.Start("Unsupported type").Shift().Location(location).Build().Error()
}

func convertKeyword(keyword string, location diagnostic.Location) (Conversion, error) {
	switch keyword {
	case "string":
		return Conversion{Kind: String{}}, nil
	case "number":
		return Conversion{Kind: Number{}}, nil
	case "boolean":
		return Conversion{Kind: Bool{}}, nil
	case "null":
		return Conversion{Kind: Null{}}, nil
	case "unknown":
		return Conversion{Kind: Dynamic{}}, nil
	case "any":
		return Conversion{}, diagnostic.Start("Use 'unknown' instead of 'any'").Shift().Location(location).Build().Error()
	}

	return Conversion{}, diagnostic.Start(fmt.Sprintf("Unknown keyword '%s'", keyword)).Shift().Location(location).Build().Error()
}

func convertTypeRef(ref *doctool.TypeRef, location diagnostic.Location, ctx convertContext) (Conversion, error) {
	typeParams := make([]Conversion, 0, len(ref.TypeParams))
	for index := range ref.TypeParams {
		conversion, err := convertTsType(&ref.TypeParams[index], location, ctx)
		if err != nil {
			return Conversion{}, err
		}

		typeParams = append(typeParams, conversion)
	}

	if ctx.actionKeyTypeName != "" && ref.TypeName == ctx.actionKeyTypeName {
		data, err := singleKeyParam(typeParams, "action", ctx.actionKeyTypeName, location)
		if err != nil {
			return Conversion{}, err
		}

		return Conversion{Kind: ActionKey{Data: data.Kind}, Dependencies: data.Dependencies}, nil
	}

	if ctx.eventKeyTypeName != "" && ref.TypeName == ctx.eventKeyTypeName {
		data, err := singleKeyParam(typeParams, "event", ctx.eventKeyTypeName, location)
		if err != nil {
			return Conversion{}, err
		}

		return Conversion{Kind: EventKey{Data: data.Kind}, Dependencies: data.Dependencies}, nil
	}

	if ref.TypeParams != nil {
		return Conversion{}, diagnostic.Start("Type ").
			Code(ref.TypeName).
			Text(" was supplied type parameters, but this is not supported").
			Shift().
			Location(location).
			Build().
			Error()
	}

	return Conversion{
		Kind:         Ref{Name: ref.TypeName},
		Dependencies: []string{ref.TypeName},
	}, nil
}

func singleKeyParam(typeParams []Conversion, role string, keyName string, location diagnostic.Location) (Conversion, error) {
	if len(typeParams) != 1 {
		return Conversion{}, diagnostic.Start(fmt.Sprintf("Because it is an %s key, expected to find 1 type parameter for ", role)).
			Code(keyName).
			Text(", but found ").
			Text(len(typeParams)).
			Shift().
			Location(location).
			Build().
			Error()
	}

	return typeParams[0], nil
}

// convertUnion classifies a union as either a string enum or a keyed enum.
// Mixed unions are rejected.
func convertUnion(union []doctool.TsType, location diagnostic.Location, ctx convertContext) (Conversion, error) {
	var dependencies []string
	var stringVariants []string
	var keyedVariants []EnumProperty

	for index := range union {
		variantNumber := index + 1
		variant := &union[index]

		switch {
		case variant.Literal != nil:
			if variant.Literal.String == nil {
				return Conversion{}, diagnostic.Start("Failed to convert variant ").
					Text(variantNumber).
					Text(" in union. Only string literals and keyed objects are supported.").
					Shift().
					Location(location).
					Build().
					Error()
			}

			stringVariants = append(stringVariants, *variant.Literal.String)

		case variant.TypeLiteral != nil:
			keyed, keyedDependencies, err := convertKeyedVariant(variant.TypeLiteral, variantNumber, location, ctx)
			if err != nil {
				return Conversion{}, err
			}

			dependencies = append(dependencies, keyedDependencies...)
			keyedVariants = append(keyedVariants, keyed)

		default:
			return Conversion{}, diagnostic.Start("Unsupported enum type in variant ").
				Text(variantNumber).
				Text(". Only string literals and keyed objects are supported.").
				Shift().
				Location(location).
				Build().
				Error()
		}
	}

	if len(stringVariants) > 0 && len(keyedVariants) > 0 {
		return Conversion{}, diagnostic.Start("Found a union with both string and keyed object variants. This is not allowed. The entire union must be made up of either string literals or keyed objects").
			Shift().
			Location(location).
			Build().
			Error()
	}

	if len(stringVariants) > 0 {
		return Conversion{Kind: StringEnum{Variants: stringVariants}}, nil
	}

	return Conversion{Kind: KeyedEnum{Variants: keyedVariants}, Dependencies: dependencies}, nil
}

// convertKeyedVariant reads the `{type: "Name"; def: T}` shape of one keyed
// union variant.
func convertKeyedVariant(literal *doctool.TypeLiteral, variantNumber int, location diagnostic.Location, ctx convertContext) (EnumProperty, []string, error) {
	var comment string
	var name string
	var payload Kind
	var dependencies []string

	for _, property := range literal.Properties {
		switch property.Name {
		case "type":
			comment = property.JsDoc.Doc

			if property.TsType == nil {
				return EnumProperty{}, nil, diagnostic.Start("Expected to find a type associated with the ").
					Code("type").
					Text(" field").
					Shift().
					Location(property.Location).
					Build().
					Error()
			}

			if property.TsType.Literal == nil || property.TsType.Literal.String == nil {
				return EnumProperty{}, nil, diagnostic.Start("The type of the ").
					Code("type").
					Text(" property must be a string literal, as this is a keyed object").
					Shift().
					Location(property.Location).
					Build().
					Error()
			}

			name = *property.TsType.Literal.String

		case "def":
			if property.TsType == nil {
				return EnumProperty{}, nil, diagnostic.Start("Expected to find a type associated with the ").
					Code("def").
					Text(" field").
					Shift().
					Location(property.Location).
					Build().
					Error()
			}

			conversion, err := convertTsType(property.TsType, property.Location, ctx)
			if err != nil {
				return EnumProperty{}, nil, diagnostic.Start("Failed to convert property ").
					Code(property.Name).
					Shift().
					Location(property.Location).
					Build().
					Context(err)
			}

			dependencies = append(dependencies, conversion.Dependencies...)
			payload = conversion.Kind
		}
	}

	if name == "" {
		return EnumProperty{}, nil, diagnostic.Start("Union variant ").
			Text(variantNumber).
			Text(" is not a valid keyed object. No ").
			Code("type").
			Text(" field was found.").
			Shift().
			Location(location).
			Build().
			Error()
	}

	if payload == nil {
		return EnumProperty{}, nil, diagnostic.Start("Union variant ").
			Text(variantNumber).
			Text(" is not a valid keyed object. No ").
			Code("def").
			Text(" field was found").
			Shift().
			Location(location).
			Build().
			Error()
	}

	return EnumProperty{Name: name, Comment: comment, Kind: payload}, dependencies, nil
}
