package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/radical-ui/objection/internal/asyncworker"
	"github.com/radical-ui/objection/internal/logging"
	"github.com/radical-ui/objection/internal/server"
)

var (
	watchRuntime bool
	reload       bool
)

func init() {
	runCmd.Flags().BoolVar(&watchRuntime, "watch-runtime", false, "watch the runtime code and rebuild the client when it changes")
	runCmd.Flags().BoolVar(&reload, "reload", false, "watch the engine and note restarts")
}

// runCmd serves the built client and mediates sessions between it and the
// engine, which is expected to already be running at the configured engine
// url.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the application against the configured runtime and engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.Sugar(logging.CategoryServer)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serverURL := fmt.Sprintf("http://localhost:%d", cfg.Web.Port)

		artifacts, err := runPipeline(ctx, cfg, serverURL)
		if err != nil {
			return err
		}

		if artifacts.Bindings != "" {
			if err := writeArtifact(cfg.BindingsPath, artifacts.Bindings); err != nil {
				return err
			}
			log.Infof("wrote engine bindings to %s", cfg.BindingsPath)
		}

		terminateAfter, err := cfg.Session.TerminateAfterDuration()
		if err != nil {
			return err
		}
		pollTimeout, err := cfg.Session.PollTimeoutDuration()
		if err != nil {
			return err
		}

		sessionServer := server.New(ctx, server.Options{
			Engine: server.DialEngine(cfg.EngineURL),
			Queue: asyncworker.Options{
				MaxLength:            cfg.Session.QueuedOperationLimit,
				TerminateWorkerAfter: terminateAfter,
			},
			PollTimeout: pollTimeout,
			Bundle:      artifacts.ClientBundle,
		})

		group, groupCtx := errgroup.WithContext(ctx)

		group.Go(func() error {
			return sessionServer.Listen(groupCtx, cfg.Web.Port)
		})

		if watchRuntime {
			group.Go(func() error {
				return watchRuntimeChanges(groupCtx, sessionServer, serverURL)
			})
		}

		if reload {
			group.Go(func() error {
				watchEngineRestarts(groupCtx, cfg.EngineURL)
				return nil
			})
		}

		return group.Wait()
	},
}

// watchRuntimeChanges rebuilds the client bundle whenever the runtime's
// directory changes. Remote runtimes cannot be watched.
func watchRuntimeChanges(ctx context.Context, sessionServer *server.Server, serverURL string) error {
	log := logging.Sugar(logging.CategoryBundle)

	path, ok := localRuntimePath(cfg.Runtime)
	if !ok {
		log.Warnf("runtime %s is not a local path; disabling --watch-runtime", cfg.Runtime)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start the runtime watcher: %w", err)
	}
	defer watcher.Close()

	dir := path
	if index := strings.LastIndexByte(path, '/'); index > 0 {
		dir = path[:index]
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	log.Infof("watching %s for runtime changes", dir)

	// Editors fire bursts of events per save; rebuild once per burst.
	var debounce *time.Timer
	rebuild := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("runtime watcher: %v", err)

		case <-rebuild:
			log.Info("runtime changed; rebuilding the client bundle")

			artifacts, err := runPipeline(ctx, cfg, serverURL)
			if err != nil {
				log.Errorf("rebuild failed: %v", err)
				continue
			}

			sessionServer.SetBundle(artifacts.ClientBundle)
			if artifacts.Bindings != "" {
				if err := writeArtifact(cfg.BindingsPath, artifacts.Bindings); err != nil {
					log.Errorf("failed to rewrite bindings: %v", err)
				}
			}
		}
	}
}

// watchEngineRestarts polls the engine's tcp endpoint and logs connectivity
// transitions so a restarted engine is visible in the dev loop.
func watchEngineRestarts(ctx context.Context, engineURL string) {
	log := logging.Sugar(logging.CategoryServer)

	address, ok := engineAddress(engineURL)
	if !ok {
		log.Warnf("cannot watch engine restarts: %s has no host", engineURL)
		return
	}

	connected := false
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		conn, err := net.DialTimeout("tcp", address, time.Second)
		if err != nil {
			if connected {
				log.Warnf("engine at %s went away", address)
				connected = false
			}
			continue
		}
		_ = conn.Close()

		if !connected {
			log.Infof("engine at %s is up", address)
			connected = true
		}
	}
}

// localRuntimePath resolves a runtime specifier to a watchable local path.
func localRuntimePath(runtime string) (string, bool) {
	if strings.HasPrefix(runtime, "http://") || strings.HasPrefix(runtime, "https://") {
		return "", false
	}
	if path, ok := strings.CutPrefix(runtime, "file://"); ok {
		return path, true
	}
	return runtime, true
}

// engineAddress extracts host:port from an engine url, defaulting ports by
// scheme.
func engineAddress(engineURL string) (string, bool) {
	parsed, err := url.Parse(engineURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}

	if parsed.Port() != "" {
		return parsed.Host, true
	}

	switch parsed.Scheme {
	case "https", "wss":
		return parsed.Host + ":443", true
	default:
		return parsed.Host + ":80", true
	}
}
