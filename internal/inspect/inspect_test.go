package inspect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radical-ui/objection/internal/collect"
	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/doctool"
)

func collectNodes(t *testing.T, nodes []doctool.Node) *collect.Collection {
	t.Helper()
	collection := collect.NewCollection()
	collection.Collect(nodes)
	return collection
}

func objectNode(name string, properties ...doctool.PropertyDef) doctool.Node {
	return doctool.Node{
		Name:         name,
		Kind:         doctool.NodeInterface,
		InterfaceDef: &doctool.InterfaceDef{Properties: properties},
	}
}

func flushMessages(t *testing.T, list *diagnostic.List) string {
	t.Helper()
	err := list.Flush("inspect")
	if err == nil {
		return ""
	}
	return err.Error()
}

func TestInspectAcceptsIdiomaticNames(t *testing.T) {
	collection := collectNodes(t, []doctool.Node{
		objectNode("Card",
			doctool.PropertyDef{Name: "titleText", TsType: &doctool.TsType{Keyword: "string"}},
			doctool.PropertyDef{Name: "isWide", TsType: &doctool.TsType{Keyword: "boolean"}},
		),
	})

	list := diagnostic.NewList()
	New(collection).Inspect(list)
	require.Equal(t, 0, list.Len())
}

func TestInspectFlagsPropertyCase(t *testing.T) {
	collection := collectNodes(t, []doctool.Node{
		objectNode("Card",
			doctool.PropertyDef{Name: "TitleText", TsType: &doctool.TsType{Keyword: "string"}},
		),
	})

	list := diagnostic.NewList()
	New(collection).Inspect(list)
	require.Equal(t, 1, list.Len())

	message := flushMessages(t, list)
	assert.Contains(t, message, "due to 1 previous error")
}

func TestInspectFlagsTypeCase(t *testing.T) {
	collection := collectNodes(t, []doctool.Node{
		objectNode("card_view",
			doctool.PropertyDef{Name: "text", TsType: &doctool.TsType{Keyword: "string"}},
		),
	})

	list := diagnostic.NewList()
	New(collection).Inspect(list)
	assert.Equal(t, 1, list.Len())
}

func TestInspectFlagsReservedWords(t *testing.T) {
	collection := collectNodes(t, []doctool.Node{
		objectNode("Card",
			doctool.PropertyDef{Name: "loop", TsType: &doctool.TsType{Keyword: "string"}},
		),
	})

	list := diagnostic.NewList()
	New(collection).Inspect(list)
	// `loop` is camelCase already, so only the reservation fires.
	require.Equal(t, 1, list.Len())
}

func TestInspectWalksEnumVariants(t *testing.T) {
	primary := "Primary"
	wrong := "not_pascal"
	collection := collectNodes(t, []doctool.Node{
		{
			Name: "ColorType",
			Kind: doctool.NodeTypeAlias,
			TypeAliasDef: &doctool.TypeAliasDef{TsType: doctool.TsType{Union: []doctool.TsType{
				{Literal: &doctool.Literal{Kind: "string", String: &primary}},
				{Literal: &doctool.Literal{Kind: "string", String: &wrong}},
			}}},
		},
	})

	list := diagnostic.NewList()
	New(collection).Inspect(list)
	require.Equal(t, 1, list.Len())
}

func TestInspectNeverRemovesEntries(t *testing.T) {
	collection := collectNodes(t, []doctool.Node{
		objectNode("Card",
			doctool.PropertyDef{Name: "TitleText", TsType: &doctool.TsType{Keyword: "string"}},
		),
	})

	list := diagnostic.NewList()
	New(collection).Inspect(list)
	assert.True(t, list.Len() > 0)
	assert.True(t, collection.HasKind("Card"))

	names := collection.AllNames()
	assert.True(t, strings.Contains(strings.Join(names, ","), "Card"))
}
