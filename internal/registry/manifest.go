package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/riveredge/platform/pkg/logger"
)

// Manifest is the manifest.json an application plugin ships in its
// directory. Only Code is required; unknown fields are ignored.
type Manifest struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Icon           string          `json:"icon"`
	Version        string          `json:"version"`
	RoutePath      string          `json:"route_path"`
	EntryPoint     string          `json:"entry_point"`
	MenuConfig     json.RawMessage `json:"menu_config"`
	PermissionCode string          `json:"permission_code"`
	SortOrder      int             `json:"sort_order"`
}

const manifestFileName = "manifest.json"

// ParseManifest decodes and validates a single manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Code == "" {
		return nil, errMissingCode
	}
	if m.Name == "" {
		m.Name = m.Code
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	return &m, nil
}

type manifestError string

func (e manifestError) Error() string { return string(e) }

const errMissingCode = manifestError("manifest is missing required field \"code\"")

// ScanPlugins enumerates subdirectories of the plugin root and returns the
// manifests found, sorted by code for deterministic reconciliation. Broken
// manifests are logged and skipped; a missing root is not an error so fresh
// deployments boot with zero plugins.
func ScanPlugins(root string) ([]*Manifest, error) {
	log := logger.GetLogger()

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("Plugin directory does not exist, skipping scan", zap.String("dir", root))
			return nil, nil
		}
		return nil, err
	}

	var manifests []*Manifest
	seen := map[string]string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name(), manifestFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("Failed to read plugin manifest", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		m, err := ParseManifest(data)
		if err != nil {
			log.Warn("Invalid plugin manifest", zap.String("path", path), zap.Error(err))
			continue
		}
		if prev, dup := seen[m.Code]; dup {
			log.Warn("Duplicate plugin code, keeping first",
				zap.String("code", m.Code),
				zap.String("kept", prev),
				zap.String("skipped", entry.Name()))
			continue
		}
		seen[m.Code] = entry.Name()
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Code < manifests[j].Code })
	return manifests, nil
}
