// Package bundle wraps the deno-based bundler subprocess. The bundler
// receives the generated entry source plus a manifest describing how every
// module specifier resolves and where its source lives on disk, and returns
// the single client script on stdout.
package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/radical-ui/objection/internal/logging"
)

// Manifest is the resolution and source table handed to the bundler.
type Manifest struct {
	// Resolutions maps a host module url to its local import specifiers and
	// the urls they resolve to.
	Resolutions map[string]map[string]string `json:"resolutions"`

	// SourceFiles maps a module url to the on-disk path of its (possibly
	// transpiled) source.
	SourceFiles map[string]string `json:"source_files"`
}

// Bundler accumulates the manifest while the module graph loads, then drives
// the subprocess.
type Bundler struct {
	manifest Manifest

	// Script is the bundler entry point. Defaults to the script shipped
	// alongside the CLI.
	Script string
}

// New returns a bundler with an empty manifest.
func New() *Bundler {
	return &Bundler{
		manifest: Manifest{
			Resolutions: map[string]map[string]string{},
			SourceFiles: map[string]string{},
		},
		Script: "bundle/main.ts",
	}
}

// RegisterDependency records that host refers to resolvedURL as localName.
func (b *Bundler) RegisterDependency(host string, localName string, resolvedURL string) {
	resolutions, ok := b.manifest.Resolutions[host]
	if !ok {
		resolutions = map[string]string{}
		b.manifest.Resolutions[host] = resolutions
	}

	resolutions[localName] = resolvedURL
}

// RegisterSourceFile records where the source for a module url lives on disk.
func (b *Bundler) RegisterSourceFile(url string, path string) {
	b.manifest.SourceFiles[url] = path
}

// Manifest exposes the accumulated tables. Used by tests.
func (b *Bundler) Manifest() Manifest {
	return b.manifest
}

// Bundle runs the subprocess with (entrySource, manifest) on stdin and
// returns the bundled script. A non-zero exit is a bundling failure.
func (b *Bundler) Bundle(ctx context.Context, entrySource string) (string, error) {
	payload, err := json.Marshal([2]any{entrySource, b.manifest})
	if err != nil {
		return "", fmt.Errorf("failed to serialize the bundle manifest: %w", err)
	}

	command := exec.CommandContext(ctx, "deno", "run", "--allow-read", b.Script)
	command.Env = []string{"PATH=" + os.Getenv("PATH")}
	command.Stdin = bytes.NewReader(payload)
	command.Stderr = os.Stderr

	var stdout bytes.Buffer
	command.Stdout = &stdout

	logging.Sugar(logging.CategoryBundle).Debugf("bundling %d source files", len(b.manifest.SourceFiles))

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("bundling failed: %w", err)
	}

	return stdout.String(), nil
}
