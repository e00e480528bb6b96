package interfaces

import (
	"fmt"
	"strings"
	"time"
)

// DeviceIdentity is a device's enrollment record. It is created out-of-band
// by fleet data entry, read-only to the provisioner, and never mutated.
type DeviceIdentity struct {
	DeviceID          string
	ThingName         string
	IoTDataEndpoint   string
	AWSRegion         string
	RootCAMaterial    string
	CertificatePEM    string
	PrivateKeyPEM     string
	RoleAlias         string
	RoleAliasEndpoint string

	// Optional agent settings. Zero values mean "not set".
	AgentVersion      string
	DeploymentGroup   string
	InitialComponents []string
	ProxyURL          string
	MQTTPort          int
	CustomDomain      string
}

// Validate checks that all required fields are non-empty. RootCAMaterial may
// be either inline PEM content or a path to a PEM file; it is resolved at
// materialization time, so only presence is checked here.
func (d *DeviceIdentity) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"device_id", d.DeviceID},
		{"thing_name", d.ThingName},
		{"iot_data_endpoint", d.IoTDataEndpoint},
		{"aws_region", d.AWSRegion},
		{"root_ca_material", d.RootCAMaterial},
		{"certificate_pem", d.CertificatePEM},
		{"private_key_pem", d.PrivateKeyPEM},
		{"role_alias", d.RoleAlias},
		{"role_alias_endpoint", d.RoleAliasEndpoint},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing fields: %s", ErrConfigurationInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// SplitComponents parses a comma-separated list field into an ordered
// sequence, discarding empty segments.
func SplitComponents(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ProvisioningState is a computed view of an installation target directory.
// It is never persisted; the detector derives it on every call.
type ProvisioningState struct {
	Provisioned       bool
	ThingName         string
	AgentVersion      string
	ConfigFilePath    string
	MissingComponents []string
	Details           string
}

// ConnectivityResult reports the outcome of the network reachability probe.
type ConnectivityResult struct {
	IsConnected     bool
	DNSOk           bool
	HTTPSOk         bool
	Latency         time.Duration
	TestedEndpoints []string
	Error           string
}

// ConfigBundle holds the paths of a materialized configuration artifact set.
// A bundle is created fresh on every materialization call and overwrites any
// prior bundle at the same target path.
type ConfigBundle struct {
	ConfigFilePath  string
	CertificatePath string
	PrivateKeyPath  string
	RootCAPath      string
	Success         bool
	Error           string
}
