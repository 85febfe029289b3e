package main

import (
	"context"
	"fmt"

	"github.com/radical-ui/objection/internal/bundle"
	"github.com/radical-ui/objection/internal/collect"
	"github.com/radical-ui/objection/internal/config"
	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/doctool"
	"github.com/radical-ui/objection/internal/genjs"
	"github.com/radical-ui/objection/internal/genrust"
	"github.com/radical-ui/objection/internal/inspect"
	"github.com/radical-ui/objection/internal/modgraph"
)

// buildArtifacts is everything one pipeline pass produces.
type buildArtifacts struct {
	// Bindings is the generated engine binding source. Empty when no engine
	// is selected.
	Bindings string

	// ClientBundle is the bundled client script.
	ClientBundle string

	// Collection is the validated IR, kept for callers that need the
	// component registry.
	Collection *collect.Collection
}

// runPipeline drives the whole build: load the module graph, collect and
// validate the runtime types, generate bindings, and bundle the client.
// clientEngineURL is what the bundled client connects to - the dev server in
// run mode, the configured engine in build mode.
func runPipeline(ctx context.Context, cfg *config.Config, clientEngineURL string) (*buildArtifacts, error) {
	sources := modgraph.NewSources()
	bundler := bundle.New()
	loader := modgraph.Loader{CacheDir: cfg.CacheDir}

	if err := loader.Load(ctx, cfg.Runtime, sources, bundler); err != nil {
		return nil, err
	}

	nodes, err := doctool.Parse(ctx, cfg.Runtime, cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	collection := collect.NewCollection()
	collection.Collect(nodes)
	collection.CheckComponents()

	list := diagnostic.NewList()
	for _, problem := range collection.Errors() {
		list.AddError(problem)
	}
	inspect.New(collection).Inspect(list)

	if err := list.Flush("collect the runtime types"); err != nil {
		return nil, err
	}

	artifacts := &buildArtifacts{Collection: collection}

	switch cfg.Engine {
	case "":
		// No bindings requested.
	case "rust":
		generator := genrust.New(collection, list)
		generator.Generate()
		artifacts.Bindings = generator.Output()

		if err := list.Flush("generate engine bindings"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown engine %q; the supported engine is 'rust'", cfg.Engine)
	}

	entry := genjs.Entry(cfg.Runtime, clientEngineURL, collection)

	clientBundle, err := bundler.Bundle(ctx, entry)
	if err != nil {
		return nil, err
	}
	artifacts.ClientBundle = clientBundle

	return artifacts, nil
}
