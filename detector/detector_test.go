package detector

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const validNucleusConfig = `---
system:
  certificateFilePath: "/greengrass/v2/certs/EdgeThing.cert.pem"
  privateKeyPath: "/greengrass/v2/certs/EdgeThing.private.key"
  rootCaPath: "/greengrass/v2/certs/root.ca.pem"
  rootpath: "/greengrass/v2/ggc-root"
  thingName: "EdgeThing"
services:
  aws.greengrass.Nucleus:
    componentType: "NUCLEUS"
    version: "2.9.0"
`

func writeInstallation(t *testing.T, root string, configName, configContent string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "certs"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ggc-root"), 0o750))

	if configName != "" {
		require.NoError(t, os.WriteFile(
			filepath.Join(root, "config", configName), []byte(configContent), 0o640))
	}
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "certs", "EdgeThing.cert.pem"), []byte("cert"), 0o640))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "certs", "EdgeThing.private.key"), []byte("key"), 0o600))
}

func TestDetectMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, "directory does not exist", state.Details)
	assert.Empty(t, state.MissingComponents)
}

func TestDetectEmptyRoot(t *testing.T) {
	root := t.TempDir()

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, []string{"config", "certificates", "ggc-root"}, state.MissingComponents)
	assert.Contains(t, state.Details, "missing components")
}

func TestDetectFullyProvisioned(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml", validNucleusConfig)

	state := New(root, testLogger()).Detect()

	assert.True(t, state.Provisioned)
	assert.Equal(t, "EdgeThing", state.ThingName)
	assert.Equal(t, "v2.x", state.AgentVersion)
	assert.Equal(t, filepath.Join(root, "config", "config.yaml"), state.ConfigFilePath)
	assert.Equal(t, "fully provisioned", state.Details)
}

func TestDetectMissingConfig(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "", "")

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, []string{"config"}, state.MissingComponents)
}

func TestDetectMissingKeyFile(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml", validNucleusConfig)
	require.NoError(t, os.Remove(filepath.Join(root, "certs", "EdgeThing.private.key")))

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, []string{"certificates"}, state.MissingComponents)
}

func TestDetectCorruptedConfig(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml", "services: [unterminated")

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, "configuration file is invalid or corrupted", state.Details)
	assert.Empty(t, state.MissingComponents)
}

func TestDetectConfigMissingSections(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml", "system:\n  thingName: Lonely\n")

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, "configuration file is invalid or corrupted", state.Details)
}

func TestDetectEmptyConfig(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml", "")

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, "configuration file is invalid or corrupted", state.Details)
}

func TestDetectThingNameUnknown(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml",
		"system:\n  rootpath: /greengrass\nservices:\n  main: {}\n")

	state := New(root, testLogger()).Detect()

	assert.True(t, state.Provisioned)
	assert.Equal(t, "unknown", state.ThingName)
}

func TestDetectLegacyJSONConfig(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.json",
		`{"coreThing": {"thingName": "LegacyThing", "iotHost": "example.amazonaws.com"}}`)

	state := New(root, testLogger()).Detect()

	assert.True(t, state.Provisioned)
	assert.Equal(t, "LegacyThing", state.ThingName)
	assert.Equal(t, "v1.x", state.AgentVersion)
}

func TestDetectLegacyJSONWithoutKnownSections(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.json", `{"other": {}}`)

	state := New(root, testLogger()).Detect()

	assert.False(t, state.Provisioned)
	assert.Equal(t, "configuration file is invalid or corrupted", state.Details)
}

func TestDetectRecipesDirForcesV2(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.json",
		`{"system": {"thingName": "Mixed"}}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "recipes"), 0o750))

	state := New(root, testLogger()).Detect()

	assert.True(t, state.Provisioned)
	assert.Equal(t, "v2.x", state.AgentVersion)
}

func TestDetectPrefersYAMLOverYML(t *testing.T) {
	root := t.TempDir()
	writeInstallation(t, root, "config.yaml", validNucleusConfig)
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "config", "config.yml"), []byte("bogus: ["), 0o640))

	state := New(root, testLogger()).Detect()

	assert.True(t, state.Provisioned)
	assert.Equal(t, "EdgeThing", state.ThingName)
}
