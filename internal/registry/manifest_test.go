package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, root, dir, manifest string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, "manifest.json"), []byte(manifest), 0o644))
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte(`{"code":"crm","unknown_field":true}`))
	require.NoError(t, err)
	assert.Equal(t, "crm", m.Code)
	assert.Equal(t, "crm", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
}

func TestParseManifestMissingCode(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name":"nameless"}`))
	assert.Error(t, err)
}

func TestScanPlugins(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "crm-plugin", `{"code":"crm","name":"CRM","version":"2.1.0"}`)
	writePlugin(t, root, "mes-plugin", `{"code":"mes","menu_config":[{"name":"Dashboard","path":"/mes"}]}`)
	writePlugin(t, root, "broken", `{"name":"no code"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray-file"), []byte("x"), 0o644))

	manifests, err := ScanPlugins(root)
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, "crm", manifests[0].Code)
	assert.Equal(t, "2.1.0", manifests[0].Version)
	assert.Equal(t, "mes", manifests[1].Code)
	assert.NotEmpty(t, manifests[1].MenuConfig)
}

func TestScanPluginsDuplicateCode(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "a-first", `{"code":"crm","name":"First"}`)
	writePlugin(t, root, "b-second", `{"code":"crm","name":"Second"}`)

	manifests, err := ScanPlugins(root)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "First", manifests[0].Name)
}

func TestScanPluginsMissingRoot(t *testing.T) {
	manifests, err := ScanPlugins(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
	assert.Empty(t, manifests)
}
