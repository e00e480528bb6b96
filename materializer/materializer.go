package materializer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// Materializer writes configuration bundles below a Greengrass root.
type Materializer struct {
	root      string
	configDir string
	certsDir  string
	log       *slog.Logger
}

// New creates a materializer for the given installation root.
func New(root string, log *slog.Logger) *Materializer {
	return &Materializer{
		root:      root,
		configDir: filepath.Join(root, "config"),
		certsDir:  filepath.Join(root, "certs"),
		log:       log,
	}
}

// Materialize writes the full configuration bundle for the identity. The
// returned bundle carries Success=false plus an error description rather
// than a Go error so callers can publish it verbatim.
func (m *Materializer) Materialize(identity *interfaces.DeviceIdentity) interfaces.ConfigBundle {
	bundle := interfaces.ConfigBundle{}

	m.log.Info("Materializing configuration bundle",
		slog.String("deviceID", identity.DeviceID),
		slog.String("thingName", identity.ThingName))

	if err := m.createDirectories(); err != nil {
		bundle.Error = fmt.Sprintf("failed to create directory structure: %v", err)
		return bundle
	}

	if err := m.writeCertificates(identity); err != nil {
		bundle.Error = fmt.Sprintf("failed to write certificates: %v", err)
		return bundle
	}

	configContent, err := renderConfig(identity, m.root)
	if err != nil {
		bundle.Error = fmt.Sprintf("failed to render config.yaml: %v", err)
		return bundle
	}
	configPath := filepath.Join(m.configDir, "config.yaml")
	if err := os.WriteFile(configPath, configContent, 0o640); err != nil {
		bundle.Error = fmt.Sprintf("failed to write config.yaml: %v", err)
		return bundle
	}

	if err := m.validate(); err != nil {
		bundle.Error = err.Error()
		return bundle
	}

	bundle.ConfigFilePath = configPath
	bundle.CertificatePath = filepath.Join(m.certsDir, identity.ThingName+".cert.pem")
	bundle.PrivateKeyPath = filepath.Join(m.certsDir, identity.ThingName+".private.key")
	bundle.RootCAPath = filepath.Join(m.certsDir, "root.ca.pem")
	bundle.Success = true

	m.log.Info("Configuration bundle materialized", slog.String("config", configPath))
	return bundle
}

func (m *Materializer) createDirectories() error {
	dirs := []string{
		m.root,
		m.configDir,
		m.certsDir,
		filepath.Join(m.root, "logs"),
		filepath.Join(m.root, "work"),
		filepath.Join(m.root, "packages"),
		filepath.Join(m.root, "deployments"),
		filepath.Join(m.root, "ggc-root"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// The root and the certificate directory stay out of world reach.
	for _, dir := range []string{m.root, m.certsDir} {
		if err := os.Chmod(dir, 0o750); err != nil {
			return fmt.Errorf("chmod %s: %w", dir, err)
		}
	}
	return nil
}

func (m *Materializer) writeCertificates(identity *interfaces.DeviceIdentity) error {
	writes := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{filepath.Join(m.certsDir, identity.ThingName+".cert.pem"), identity.CertificatePEM, 0o640},
		{filepath.Join(m.certsDir, identity.ThingName+".private.key"), identity.PrivateKeyPEM, 0o600},
		{filepath.Join(m.certsDir, "root.ca.pem"), resolveRootCA(identity.RootCAMaterial), 0o640},
	}

	for _, w := range writes {
		if err := os.WriteFile(w.path, []byte(w.content), w.mode); err != nil {
			return fmt.Errorf("write %s: %w", w.path, err)
		}
		// WriteFile does not lower permissions on overwrite.
		if err := os.Chmod(w.path, w.mode); err != nil {
			return fmt.Errorf("chmod %s: %w", w.path, err)
		}
	}
	return nil
}

// resolveRootCA accepts either a path to an existing CA file or the PEM
// content itself.
func resolveRootCA(material string) string {
	if content, err := os.ReadFile(material); err == nil {
		return string(content)
	}
	return material
}

// validate checks the bundle actually landed on disk.
func (m *Materializer) validate() error {
	if _, err := os.Stat(filepath.Join(m.configDir, "config.yaml")); err != nil {
		return fmt.Errorf("config.yaml does not exist")
	}

	entries, err := os.ReadDir(m.certsDir)
	if err != nil {
		return fmt.Errorf("certs directory is not readable: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".pem") || strings.HasSuffix(name, ".key") {
			return nil
		}
	}
	return fmt.Errorf("no certificates found in certs directory")
}
