package collect

import (
	"sort"
	"strings"

	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/doctool"
	"github.com/radical-ui/objection/internal/logging"
)

// EntryFunctionName is the function every runtime must export; it boots the
// client.
const EntryFunctionName = "start"

type internalKindDefinition struct {
	comment      string
	kind         Kind
	dependencies []string
}

// Collection is the IR root: every declared kind, the conversion failures
// (kept so the dependency graph can still close over them), the component
// registry, the exported function set, and the role singletons discovered
// from doc tags.
type Collection struct {
	actionKeyTypeName  string
	eventKeyTypeName   string
	componentIndexName string
	kinds              map[string]internalKindDefinition
	erroringKinds      map[string]error
	components         map[string]*ComponentInfo
	functions          map[string]struct{}
	erroringFunctions  map[string]error
	otherDiagnostics   []error
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{
		kinds:             map[string]internalKindDefinition{},
		erroringKinds:     map[string]error{},
		components:        map[string]*ComponentInfo{},
		functions:         map[string]struct{}{},
		erroringFunctions: map[string]error{},
	}
}

// Collect converts the parsed declarations into the IR. The first pass
// discovers role tags so the second pass can classify key references no
// matter where the tagged declarations appear; processing order never affects
// the result because references resolve by name.
func (c *Collection) Collect(nodes []doctool.Node) {
	for _, node := range nodes {
		c.considerJsDocTags(node.Name, node.JsDoc.Tags)
	}

	if c.eventKeyTypeName == "" {
		diagnostic.Start("No type was found for noting event keys").
			Shift().
			Text("Runtime events will not be recognized without a @feature_event_key js doc tag to notate them. Additionally, this type must be exported from the runtime.").
			Build().
			PrintWarn()
	}

	if c.actionKeyTypeName == "" {
		diagnostic.Start("No type was found for noting action keys").
			Shift().
			Text("Runtime action types will not be recognized without a @feature_action_key js doc tag to notate them. Additionally, this type must be exported from the runtime.").
			Build().
			PrintWarn()
	}

	ctx := convertContext{
		actionKeyTypeName: c.actionKeyTypeName,
		eventKeyTypeName:  c.eventKeyTypeName,
	}

	for _, node := range nodes {
		c.collectNode(node, ctx)
	}
}

func (c *Collection) collectNode(node doctool.Node, ctx convertContext) {
	switch node.Kind {
	case doctool.NodeFunction:
		c.functions[node.Name] = struct{}{}

	case doctool.NodeClass:
		diagnostic.Start("Classes are not a supported type of export and will be ignored").
			Shift().
			Location(node.Location).
			Build().
			PrintWarn()

	case doctool.NodeEnum:
		diagnostic.Start("Enums are not a supported type of export and will be ignored. Use a keyed or string literal union instead").
			Shift().
			Location(node.Location).
			Build().
			PrintWarn()

	case doctool.NodeImport:
		// Re-exports were already flattened by the doc tool.

	case doctool.NodeModuleDoc:
		diagnostic.Start("Module docs are ignored. To document a specific component, place the doc comment on that component's interface").
			Shift().
			Location(node.Location).
			Build().
			PrintWarn()

	case doctool.NodeNamespace:
		diagnostic.Start("Namespaces are not supported and will be ignored").
			Shift().
			Location(node.Location).
			Build().
			PrintWarn()

	case doctool.NodeVariable:
		diagnostic.Start("Exported variables are not supported and will be ignored. If you want to export a component render function, `export function` instead").
			Shift().
			Location(node.Location).
			Build().
			PrintWarn()

	case doctool.NodeInterface:
		if node.InterfaceDef == nil {
			c.erroringKinds[node.Name] = diagnostic.Start("Bad doc tool output: expected an interface def.").Build().Error()
			return
		}

		conversion, err := convertInterface(node.InterfaceDef, node.Location, ctx)
		if err != nil {
			c.erroringKinds[node.Name] = diagnostic.Start("Failed to convert interface ").
				Code(node.Name).
				Shift().
				Location(node.Location).
				Build().
				Context(err)
			return
		}

		c.kinds[node.Name] = internalKindDefinition{
			comment:      node.JsDoc.Doc,
			kind:         conversion.Kind,
			dependencies: conversion.Dependencies,
		}

	case doctool.NodeTypeAlias:
		if node.TypeAliasDef == nil {
			c.erroringKinds[node.Name] = diagnostic.Start("Bad doc tool output: expected a type alias def for a node of kind type alias.").Build().Error()
			return
		}

		if len(node.TypeAliasDef.TypeParams) > 0 {
			c.erroringKinds[node.Name] = diagnostic.Start("Type parameters are not supported").
				Shift().
				Location(node.Location).
				Build().
				Error()
			return
		}

		conversion, err := convertTsType(&node.TypeAliasDef.TsType, node.Location, ctx)
		if err != nil {
			c.erroringKinds[node.Name] = diagnostic.Start("Failed to convert type alias ").
				Code(node.Name).
				Shift().
				Location(node.Location).
				Build().
				Context(err)
			return
		}

		c.kinds[node.Name] = internalKindDefinition{
			comment:      node.JsDoc.Doc,
			kind:         conversion.Kind,
			dependencies: conversion.Dependencies,
		}
	}
}

// considerJsDocTags records the role markers carried in a declaration's
// unsupported doc tags.
func (c *Collection) considerJsDocTags(nodeName string, tags []doctool.JsTag) {
	var renderName string
	var isComponent bool

	for _, tag := range tags {
		if tag.Kind != doctool.TagUnsupported {
			continue
		}

		words := strings.Fields(tag.Value)
		if len(words) == 0 {
			continue
		}

		switch {
		case words[0] == "@component":
			isComponent = true
			if len(words) > 1 {
				renderName = words[1]
			} else {
				renderName = nodeName + "Render"
			}

		case tag.Value == "@feature_event_key":
			c.eventKeyTypeName = nodeName

		case tag.Value == "@feature_action_key":
			c.actionKeyTypeName = nodeName

		case tag.Value == "@feature_component_index":
			c.componentIndexName = nodeName
		}
	}

	if isComponent {
		c.components[nodeName] = &ComponentInfo{KindName: nodeName, RenderName: renderName}
	}
}

// CheckComponents validates the collection in place: prunes names the
// component surface cannot reach, closes the dependency graph, and checks the
// required functions and the component index singleton.
func (c *Collection) CheckComponents() {
	log := logging.Sugar(logging.CategoryCollect)

	roots := make([]string, 0, len(c.components))
	for name := range c.components {
		roots = append(roots, name)
	}

	unreachable := c.UnrelatedNames(roots)
	if len(unreachable) > 0 {
		log.Debugf("removing unreachable names from the graph: %v", unreachable)
	}

	c.PruneNames(unreachable)
	c.MeetAllDependencies()

	if _, ok := c.functions[EntryFunctionName]; !ok {
		c.erroringFunctions[EntryFunctionName] = diagnostic.Start("Missing function ").
			Code(EntryFunctionName).
			Shift().
			Text("All runtimes must export a ").
			Code(EntryFunctionName).
			Text(" function").
			Build().
			Error()
	}

	for name, component := range c.components {
		if _, ok := c.functions[component.RenderName]; !ok {
			c.erroringFunctions[component.RenderName] = diagnostic.Start("Missing function ").
				Code(component.RenderName).
				Shift().
				Text("Specified as the renderer for ").
				Code(name).
				Text(", but it was not exported").
				Build().
				Error()
		}
	}

	if c.componentIndexName != "" {
		log.Debugf("found `%s` as the component index", c.componentIndexName)
	} else {
		c.otherDiagnostics = append(c.otherDiagnostics, diagnostic.Start("No component index was specified").
			Shift().
			Text("Either annotate a component with @feature_component_index, or export ").
			Code("Component").
			Text(" provided by the runtime library").
			Build().
			Error())
	}
}

// UnrelatedNames returns every name (surviving or erroring) that is not
// reachable from the given roots via the dependency edges of surviving kinds.
// Erroring entries carry no dependency edges, so names referenced only by
// them are reported as unrelated.
func (c *Collection) UnrelatedNames(roots []string) []string {
	marked := map[string]bool{}

	var mark func(name string)
	mark = func(name string) {
		def, ok := c.kinds[name]
		if !ok {
			return
		}

		for _, dependency := range def.dependencies {
			if !marked[dependency] {
				marked[dependency] = true
				mark(dependency)
			}
		}
	}

	for _, root := range roots {
		marked[root] = true
		mark(root)
	}

	var unrelated []string
	for name := range c.kinds {
		if !marked[name] {
			unrelated = append(unrelated, name)
		}
	}
	for name := range c.erroringKinds {
		if !marked[name] {
			unrelated = append(unrelated, name)
		}
	}

	sort.Strings(unrelated)
	return unrelated
}

// PruneNames removes the given names from both the surviving and the erroring
// tables.
func (c *Collection) PruneNames(names []string) {
	for _, name := range names {
		delete(c.kinds, name)
		delete(c.erroringKinds, name)
	}
}

// MeetAllDependencies ensures every name referenced by a surviving kind
// resolves to some entry. Missing names become erroring entries whose message
// lists all dependents.
func (c *Collection) MeetAllDependencies() {
	missing := map[string][]string{}

	for name, def := range c.kinds {
		for _, dependency := range def.dependencies {
			if _, ok := c.kinds[dependency]; ok {
				continue
			}
			if _, ok := c.erroringKinds[dependency]; ok {
				continue
			}

			missing[dependency] = append(missing[dependency], name)
		}
	}

	for name, dependents := range missing {
		sort.Strings(dependents)

		c.erroringKinds[name] = diagnostic.Start("Missing type ").
			Code(name).
			Shift().
			Text("Expected because it was referenced by ").
			JoinList(dependents).
			Build().
			Error()
	}
}

// ComponentIndexName returns the discovered index singleton, or "".
func (c *Collection) ComponentIndexName() string {
	return c.componentIndexName
}

// ActionKeyTypeName returns the discovered action key root, or "".
func (c *Collection) ActionKeyTypeName() string {
	return c.actionKeyTypeName
}

// EventKeyTypeName returns the discovered event key root, or "".
func (c *Collection) EventKeyTypeName() string {
	return c.eventKeyTypeName
}

// Comment returns the doc comment of a surviving kind.
func (c *Collection) Comment(kindName string) string {
	return c.kinds[kindName].comment
}

// HasKind reports whether name survived as a kind.
func (c *Collection) HasKind(name string) bool {
	_, ok := c.kinds[name]
	return ok
}

// HasFunction reports whether the runtime exports a function by this name.
func (c *Collection) HasFunction(name string) bool {
	_, ok := c.functions[name]
	return ok
}

// Components returns every registered component, sorted by kind name.
func (c *Collection) Components() []ComponentInfo {
	components := make([]ComponentInfo, 0, len(c.components))
	for _, info := range c.components {
		components = append(components, *info)
	}

	sort.Slice(components, func(i, j int) bool { return components[i].KindName < components[j].KindName })
	return components
}

// AllNames returns every surviving and erroring name.
func (c *Collection) AllNames() []string {
	names := make([]string, 0, len(c.kinds)+len(c.erroringKinds))
	for name := range c.kinds {
		names = append(names, name)
	}
	for name := range c.erroringKinds {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// ResolveKind follows symbolic references until it reaches a non-ref kind or
// a name with no surviving definition. The second result is the last resolved
// name, or "" when kind was not a ref.
func (c *Collection) ResolveKind(kind Kind) (Kind, string) {
	ref, ok := kind.(Ref)
	if !ok {
		return kind, ""
	}

	backing, ok := c.kinds[ref.Name]
	if !ok {
		return kind, ""
	}

	resolved, resolvedName := c.ResolveKind(backing.kind)
	if resolvedName == "" {
		resolvedName = ref.Name
	}

	return resolved, resolvedName
}

// Kinds returns every surviving definition, sorted by name so downstream
// emission is reproducible.
func (c *Collection) Kinds() []KindDefinition {
	kinds := make([]KindDefinition, 0, len(c.kinds))
	for name, def := range c.kinds {
		kinds = append(kinds, KindDefinition{
			Name:         name,
			Comment:      def.comment,
			Kind:         def.kind,
			Dependencies: def.dependencies,
		})
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	return kinds
}

// Errors returns every accumulated problem: conversion failures, graph
// failures, and the function and index checks.
func (c *Collection) Errors() []error {
	names := make([]string, 0, len(c.erroringKinds))
	for name := range c.erroringKinds {
		names = append(names, name)
	}
	sort.Strings(names)

	var errors []error
	for _, name := range names {
		errors = append(errors, c.erroringKinds[name])
	}

	functionNames := make([]string, 0, len(c.erroringFunctions))
	for name := range c.erroringFunctions {
		functionNames = append(functionNames, name)
	}
	sort.Strings(functionNames)

	for _, name := range functionNames {
		errors = append(errors, c.erroringFunctions[name])
	}

	return append(errors, c.otherDiagnostics...)
}
