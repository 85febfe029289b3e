// Package genjs renders the client entry script: it imports the runtime's
// start function and every component renderer, wires a component dispatcher,
// and boots the runtime against the engine url. The bundler turns this entry
// plus the loaded module graph into the single client bundle.
package genjs

import (
	"fmt"
	"strings"

	"github.com/radical-ui/objection/internal/collect"
)

// Entry renders the boot script for a collected runtime.
func Entry(runtimeURL string, engineURL string, collection *collect.Collection) string {
	components := collection.Components()

	var js strings.Builder

	js.WriteString("import { start")
	for _, component := range components {
		js.WriteString(", ")
		js.WriteString(component.RenderName)
	}
	fmt.Fprintf(&js, " } from '%s'\n\n", runtimeURL)

	js.WriteString("const renderComponent = component => {\n")
	for _, component := range components {
		fmt.Fprintf(&js, "\tif (component.type === '%s') return %s(component.def)\n", component.KindName, component.RenderName)
	}
	js.WriteString("\tthrow new Error('Unknown component type: ' + component.type)\n")
	js.WriteString("}\n\n")

	js.WriteString("const initialElement = document.getElementById('initial-state')\n")
	js.WriteString("const initial = initialElement ? JSON.parse(initialElement.textContent) : null\n\n")
	fmt.Fprintf(&js, "start(new URL('%s'), initial, renderComponent)\n", engineURL)

	return js.String()
}
