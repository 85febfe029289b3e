// Package modgraph materializes the runtime's module graph. It drives the
// external tool twice — once to populate the transitive cache, once for a
// JSON dependency report — then reads each local file into a memory-backed
// source provider and feeds the resolution tables to the bundler.
package modgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/radical-ui/objection/internal/bundle"
	"github.com/radical-ui/objection/internal/logging"
)

// InfoGraph is the shape of the tool's dependency report.
type InfoGraph struct {
	Roots   []string     `json:"roots"`
	Modules []InfoModule `json:"modules"`
}

// InfoModule is one module in the report. Local may be empty only when Error
// is set.
type InfoModule struct {
	Specifier    string           `json:"specifier"`
	Local        string           `json:"local"`
	Error        string           `json:"error"`
	Emit         string           `json:"emit"`
	Dependencies []InfoDependency `json:"dependencies"`
}

// InfoDependency pairs the raw import specifier with its resolution.
type InfoDependency struct {
	Specifier string         `json:"specifier"`
	Code      InfoResolution `json:"code"`
}

// InfoResolution is the resolved url of a dependency.
type InfoResolution struct {
	Specifier string `json:"specifier"`
}

// Loader holds the cache directory the tool subprocesses are pinned to.
type Loader struct {
	CacheDir string
}

// Load caches the graph rooted at entryURL, reads the dependency report, and
// populates sources and bundler. Any module carrying a tool-reported error
// fails the load with that error as context.
func (l *Loader) Load(ctx context.Context, entryURL string, sources *Sources, bundler *bundle.Bundler) error {
	if err := l.cacheGraph(ctx, entryURL); err != nil {
		return err
	}

	graph, err := l.loadInfo(ctx, entryURL)
	if err != nil {
		return err
	}

	return ingest(graph, sources, bundler)
}

// ingest materializes the report: registers resolutions and source files with
// the bundler and reads each local file into the provider.
func ingest(graph *InfoGraph, sources *Sources, bundler *bundle.Bundler) error {
	log := logging.Sugar(logging.CategoryBundle)

	for _, module := range graph.Modules {
		if module.Error != "" {
			return fmt.Errorf("failed to load %s: %s", module.Specifier, module.Error)
		}

		for _, dependency := range module.Dependencies {
			bundler.RegisterDependency(module.Specifier, dependency.Specifier, dependency.Code.Specifier)
		}

		if module.Local == "" {
			return fmt.Errorf("expected %s to have a local path because there was no error", module.Specifier)
		}

		sourcePath := module.Local
		if module.Emit != "" {
			sourcePath = module.Emit
		}
		bundler.RegisterSourceFile(module.Specifier, sourcePath)

		content, err := os.ReadFile(module.Local)
		if err != nil {
			return fmt.Errorf("tried to read '%s', the local path for %s: %w", module.Local, module.Specifier, err)
		}

		sources.Add(module.Specifier, string(content))
		log.Debugf("loaded %s from %s", module.Specifier, module.Local)
	}

	return nil
}

// cacheGraph populates the tool's transitive module cache.
func (l *Loader) cacheGraph(ctx context.Context, entryURL string) error {
	command := exec.CommandContext(ctx, "deno", "cache", entryURL)
	command.Env = l.env()
	command.Stdout = os.Stderr
	command.Stderr = os.Stderr

	if err := command.Run(); err != nil {
		return fmt.Errorf("failed to cache module graph for %s: `deno cache` exited abnormally: %w", entryURL, err)
	}

	return nil
}

// loadInfo runs the report subprocess and decodes its output.
func (l *Loader) loadInfo(ctx context.Context, entryURL string) (*InfoGraph, error) {
	command := exec.CommandContext(ctx, "deno", "info", "--json", entryURL)
	command.Env = l.env()
	command.Stderr = os.Stderr

	var stdout bytes.Buffer
	command.Stdout = &stdout

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("failed to get info on module graph for %s: `deno info` exited abnormally: %w", entryURL, err)
	}

	var graph InfoGraph
	if err := json.Unmarshal(stdout.Bytes(), &graph); err != nil {
		return nil, fmt.Errorf("failed to deserialize the json output of `deno info`; this is probably caused by a regression in deno itself: %w", err)
	}

	return &graph, nil
}

func (l *Loader) env() []string {
	env := []string{"PATH=" + os.Getenv("PATH")}
	if l.CacheDir != "" {
		env = append(env, "DENO_DIR="+l.CacheDir)
	}
	return env
}
