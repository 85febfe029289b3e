// Package assets materializes a runtime's static assets. An asset index is a
// json file listing entries with an expected sha256, a path relative to the
// index, and the web path the asset is served under. Assets are copied or
// downloaded into the output directory, content-addressed by their hash, and
// skipped when the on-disk content already matches.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/radical-ui/objection/internal/diagnostic"
	"github.com/radical-ui/objection/internal/logging"
)

// rawAsset is one index entry on the wire.
type rawAsset struct {
	Sha256    string `json:"sha256"`
	LocalPath string `json:"localPath"`
	WebPath   string `json:"webPath"`
}

// Asset is one resolved index entry.
type Asset struct {
	Sha256  []byte
	URL     string
	WebPath string
}

// Kind filters which asset sources a write pass touches.
type Kind int

const (
	// KindRemote writes only http(s) assets.
	KindRemote Kind = iota
	// KindLocal writes only file assets.
	KindLocal
	// KindAll writes everything.
	KindAll
)

// Loader accumulates asset indexes, resolves their entries, and writes the
// assets out.
type Loader struct {
	indexes  []string
	webPaths map[string]bool
	assets   []Asset

	client *http.Client
}

// NewLoader returns an empty loader.
func NewLoader() *Loader {
	return &Loader{
		webPaths: map[string]bool{},
		client:   http.DefaultClient,
	}
}

// RegisterIndex queues an index url for loading.
func (l *Loader) RegisterIndex(indexURL string) {
	l.indexes = append(l.indexes, indexURL)
}

// Assets exposes the resolved entries.
func (l *Loader) Assets() []Asset {
	return l.assets
}

// Load resolves every queued index. A broken index or a duplicate web path
// becomes a diagnostic; loading continues so all problems surface at once.
func (l *Loader) Load(ctx context.Context, list *diagnostic.List) {
	indexes := l.indexes
	l.indexes = nil

	for _, indexURL := range indexes {
		assets, err := l.loadIndex(ctx, indexURL)
		if err != nil {
			list.AddError(fmt.Errorf("failed to load asset index at %s: %w", indexURL, err))
			continue
		}

		for assetIndex, asset := range assets {
			if l.webPaths[asset.WebPath] {
				list.Add(diagnostic.Start("Asset #").
					Text(assetIndex).
					Text(" defines its web path as ").
					Text(asset.WebPath).
					Text(", but that web path has already been registered").
					Shift().
					Text(indexURL).
					Build())
				continue
			}

			l.webPaths[asset.WebPath] = true
			l.assets = append(l.assets, asset)
		}
	}
}

// Write materializes the matching assets under dir. Hash mismatches and
// failed downloads become diagnostics; assets already on disk with the right
// content are left alone.
func (l *Loader) Write(ctx context.Context, dir string, kind Kind, list *diagnostic.List) {
	log := logging.Sugar(logging.CategoryBundle)

	for _, asset := range l.assets {
		isLocal := strings.HasPrefix(asset.URL, "file://") || !strings.Contains(asset.URL, "://")
		if isLocal && kind == KindRemote {
			continue
		}
		if !isLocal && kind == KindLocal {
			continue
		}

		target := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(asset.WebPath, "/")))

		if existing, err := fileSha256(target); err == nil && hashesEqual(existing, asset.Sha256) {
			log.Debugf("asset %s is up to date", asset.WebPath)
			continue
		}

		downloaded, err := l.fetch(ctx, asset.URL, target)
		if err != nil {
			list.AddError(fmt.Errorf("failed to download %s: %w", asset.URL, err))
			continue
		}

		if !hashesEqual(downloaded, asset.Sha256) {
			list.Add(diagnostic.Start("After being downloaded, the expected hash in the asset index does not match the actual hash of the file").
				Shift().
				Text(asset.URL).
				Build())
			continue
		}

		log.Debugf("wrote asset %s", asset.WebPath)
	}
}

// loadIndex reads and resolves one index file.
func (l *Loader) loadIndex(ctx context.Context, indexURL string) ([]Asset, error) {
	data, err := l.read(ctx, indexURL)
	if err != nil {
		return nil, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("asset index should be a json file containing an array: %w", err)
	}

	assets := make([]Asset, 0, len(entries))
	for index, entry := range entries {
		asset, err := assetFromJSON(indexURL, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize asset #%d: %w", index, err)
		}
		assets = append(assets, asset)
	}

	return assets, nil
}

func assetFromJSON(indexURL string, data json.RawMessage) (Asset, error) {
	var raw rawAsset
	if err := json.Unmarshal(data, &raw); err != nil {
		return Asset{}, err
	}

	expected, err := hex.DecodeString(raw.Sha256)
	if err != nil {
		return Asset{}, fmt.Errorf("sha256 is not encoded as valid hexadecimal: %w", err)
	}

	resolved, err := joinURL(indexURL, raw.LocalPath)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to join local path '%s' to index url '%s': %w", raw.LocalPath, indexURL, err)
	}

	return Asset{
		Sha256:  expected,
		URL:     resolved,
		WebPath: normalizeWebPath(raw.WebPath),
	}, nil
}

// read loads a url's bytes, treating bare paths and file urls as local
// files.
func (l *Loader) read(ctx context.Context, rawURL string) ([]byte, error) {
	if path, ok := strings.CutPrefix(rawURL, "file://"); ok {
		return os.ReadFile(path)
	}
	if !strings.Contains(rawURL, "://") {
		return os.ReadFile(rawURL)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	response, err := l.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", response.StatusCode)
	}

	return io.ReadAll(response.Body)
}

// fetch writes the content of a url to target and returns the sha256 of what
// was written.
func (l *Loader) fetch(ctx context.Context, rawURL string, target string) ([]byte, error) {
	data, err := l.read(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return sum[:], nil
}

func fileSha256(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}

func hashesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for index := range a {
		if a[index] != b[index] {
			return false
		}
	}
	return true
}

// joinURL resolves a relative path against the index location, for both url
// and plain-path indexes.
func joinURL(indexURL string, relative string) (string, error) {
	if strings.Contains(relative, "://") {
		return relative, nil
	}

	if strings.Contains(indexURL, "://") {
		base, err := url.Parse(indexURL)
		if err != nil {
			return "", err
		}
		reference, err := url.Parse(relative)
		if err != nil {
			return "", err
		}
		return base.ResolveReference(reference).String(), nil
	}

	return filepath.Join(filepath.Dir(indexURL), relative), nil
}

// normalizeWebPath collapses leading and trailing slashes down to a single
// leading slash.
func normalizeWebPath(path string) string {
	if after, ok := strings.CutPrefix(path, "/"); ok {
		return normalizeWebPath(after)
	}
	if before, ok := strings.CutSuffix(path, "/"); ok {
		return normalizeWebPath(before)
	}
	return "/" + path
}
