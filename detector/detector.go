package detector

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// Detector inspects an installation target directory.
type Detector struct {
	root       string
	configPath string
	certsPath  string
	ggcRoot    string
	log        *slog.Logger
}

// New creates a detector for the given installation root.
func New(root string, log *slog.Logger) *Detector {
	return &Detector{
		root:       root,
		configPath: filepath.Join(root, "config"),
		certsPath:  filepath.Join(root, "certs"),
		ggcRoot:    filepath.Join(root, "ggc-root"),
		log:        log,
	}
}

// Detect computes the provisioning state of the installation root.
func (d *Detector) Detect() interfaces.ProvisioningState {
	state := interfaces.ProvisioningState{}

	d.log.Info("Checking provisioning state", slog.String("root", d.root))

	if _, err := os.Stat(d.root); os.IsNotExist(err) {
		state.Details = "directory does not exist"
		d.log.Info("Installation root does not exist", slog.String("root", d.root))
		return state
	}

	configFile := d.findConfigFile()
	hasCerts := d.certificatesPresent()
	hasRoot := d.runtimeRootPresent()

	if configFile == "" {
		state.MissingComponents = append(state.MissingComponents, "config")
	}
	if !hasCerts {
		state.MissingComponents = append(state.MissingComponents, "certificates")
	}
	if !hasRoot {
		state.MissingComponents = append(state.MissingComponents, "ggc-root")
	}

	if len(state.MissingComponents) > 0 {
		state.Details = "missing components: " + strings.Join(state.MissingComponents, ", ")
		d.log.Info("Not provisioned", slog.String("details", state.Details))
		return state
	}

	thingName, valid := validateConfigFile(configFile)
	if !valid {
		state.Details = "configuration file is invalid or corrupted"
		d.log.Warn("Configuration file is invalid", slog.String("path", configFile))
		return state
	}

	state.Provisioned = true
	state.ThingName = thingName
	state.AgentVersion = d.detectAgentVersion(configFile)
	state.ConfigFilePath = configFile
	state.Details = "fully provisioned"

	d.log.Info("Already provisioned",
		slog.String("thingName", state.ThingName),
		slog.String("version", state.AgentVersion))
	return state
}

// findConfigFile returns the first existing config file variant, or "".
func (d *Detector) findConfigFile() string {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		candidate := filepath.Join(d.configPath, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// certificatesPresent requires at least one certificate file AND at least
// one key file in the certs directory.
func (d *Detector) certificatesPresent() bool {
	entries, err := os.ReadDir(d.certsPath)
	if err != nil {
		return false
	}

	var foundCert, foundKey bool
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.Contains(name, ".cert.pem") || strings.HasSuffix(name, ".crt") {
			foundCert = true
		}
		if strings.Contains(name, ".private.key") || strings.HasSuffix(name, ".key") {
			foundKey = true
		}
	}
	return foundCert && foundKey
}

func (d *Detector) runtimeRootPresent() bool {
	info, err := os.Stat(d.ggcRoot)
	return err == nil && info.IsDir()
}

// validateConfigFile parses the config file and extracts the thing name via
// section-scoped lookup. The newer YAML format requires top-level "system"
// and "services" sections; the legacy JSON format requires a "coreThing" or
// "system" object.
func validateConfigFile(path string) (thingName string, valid bool) {
	content, err := os.ReadFile(path)
	if err != nil || len(content) == 0 {
		return "", false
	}

	if strings.HasSuffix(path, ".json") {
		return validateLegacyConfig(content)
	}
	return validateNucleusConfig(content)
}

func validateNucleusConfig(content []byte) (string, bool) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", false
	}

	system, hasSystem := doc["system"]
	if _, hasServices := doc["services"]; !hasSystem || !hasServices {
		return "", false
	}

	var systemSection struct {
		ThingName string `yaml:"thingName"`
	}
	if err := system.Decode(&systemSection); err != nil {
		return "", false
	}
	if systemSection.ThingName == "" {
		return "unknown", true
	}
	return systemSection.ThingName, true
}

func validateLegacyConfig(content []byte) (string, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", false
	}

	for _, section := range []string{"coreThing", "system"} {
		raw, ok := doc[section]
		if !ok {
			continue
		}
		var fields struct {
			ThingName string `json:"thingName"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return "", false
		}
		if fields.ThingName != "" {
			return fields.ThingName, true
		}
		return "unknown", true
	}
	return "", false
}

// detectAgentVersion infers the agent major version from the directory and
// config format fingerprint.
func (d *Detector) detectAgentVersion(configFile string) string {
	if info, err := os.Stat(filepath.Join(d.root, "recipes")); err == nil && info.IsDir() {
		return "v2.x"
	}
	switch filepath.Ext(configFile) {
	case ".yaml", ".yml":
		return "v2.x"
	case ".json":
		return "v1.x"
	}
	return "unknown"
}
