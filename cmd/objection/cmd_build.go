package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/radical-ui/objection/internal/assets"
	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/logging"
)

// staticIndex is the shell served for static web builds. The client creates
// its session against the engine url baked into the bundle.
const staticIndex = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="UTF-8" />
		<meta name="viewport" content="width=device-width, initial-scale=1.0" />

		<title>objection</title>

		<script defer src="bundle.js"></script>
	</head>
	<body>
		<div id="root" style="display: none"></div>
	</body>
</html>
`

// buildCmd writes the build artifacts: engine bindings (when an engine is
// selected) and the platform output directory.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the configured runtime for the configured platform",
	Long: `Build the configured runtime (see --runtime) for the configured platform
(see --platform). The built client will access the engine at the configured
engine url (see --engine-url). Each platform is nested inside the output
folder; a build with "--platform=web" is written to <out-dir>/web.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.Sugar(logging.CategoryBundle)

		if cfg.Platform != "web" {
			return fmt.Errorf("unknown platform %q; the supported platform is 'web'", cfg.Platform)
		}

		artifacts, err := runPipeline(cmd.Context(), cfg, cfg.EngineURL)
		if err != nil {
			return err
		}

		if artifacts.Bindings != "" {
			if err := writeArtifact(cfg.BindingsPath, artifacts.Bindings); err != nil {
				return err
			}
			log.Infof("wrote engine bindings to %s", cfg.BindingsPath)
		}

		platformDir := filepath.Join(cfg.OutDir, cfg.Platform)
		if err := writeArtifact(filepath.Join(platformDir, "index.html"), staticIndex); err != nil {
			return err
		}
		if err := writeArtifact(filepath.Join(platformDir, "bundle.js"), artifacts.ClientBundle); err != nil {
			return err
		}

		if len(cfg.AssetIndexes) > 0 {
			assetLoader := assets.NewLoader()
			for _, index := range cfg.AssetIndexes {
				assetLoader.RegisterIndex(index)
			}

			list := diagnostic.NewList()
			assetLoader.Load(cmd.Context(), list)
			assetLoader.Write(cmd.Context(), platformDir, assets.KindAll, list)
			if err := list.Flush("write the runtime assets"); err != nil {
				return err
			}
		}

		log.Infof("wrote %s build to %s", cfg.Platform, platformDir)
		return nil
	},
}
