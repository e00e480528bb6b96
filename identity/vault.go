package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// VaultStore implements interfaces.IdentityStore over HashiCorp Vault KV v2.
//
// Records live at <mountPath>/data/<dataPath>/devices/<device_id> and the
// alias index at <mountPath>/data/<dataPath>/identifiers/<identifier>, with
// field names matching the SQLite schema. The store is strictly read-only.
type VaultStore struct {
	address   string
	mountPath string
	dataPath  string
	log       *slog.Logger

	client    *api.Client
	connected bool
}

// NewVaultStore creates a store for the given Vault server. Authentication
// uses the standard VAULT_TOKEN environment handling of the Vault client;
// token may be passed explicitly to override it.
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultStore{
		address:   address,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
		client:    client,
	}, nil
}

// Connect verifies the Vault server is initialized and unsealed.
func (s *VaultStore) Connect(ctx context.Context) error {
	if s.connected {
		s.log.Warn("Identity store already connected", slog.String("address", s.address))
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault is not available (initialized=%t, sealed=%t)", health.Initialized, health.Sealed)
	}

	s.connected = true
	s.log.Info("Connected to Vault identity store", slog.String("address", s.address))
	return nil
}

// Close marks the store disconnected. The Vault client holds no persistent
// connection state.
func (s *VaultStore) Close() error {
	s.connected = false
	return nil
}

// DeviceByID reads a record from the KV v2 devices path. A missing secret is
// a nil result, not an error.
func (s *VaultStore) DeviceByID(ctx context.Context, deviceID string) (*interfaces.DeviceIdentity, error) {
	if !s.connected {
		return nil, interfaces.ErrNotConnected
	}

	secretPath := s.dataPathFor("devices", deviceID)
	secret, err := s.client.Logical().ReadWithContext(ctx, secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		s.log.Warn("No device configuration found", slog.String("deviceID", deviceID))
		return nil, nil
	}

	fields, err := kvData(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid record for device %s: %w", deviceID, err)
	}

	identity := identityFromFields(fields)
	identity.DeviceID = stringField(fields, "device_id", deviceID)

	s.log.Info("Found device configuration", slog.String("deviceID", identity.DeviceID))
	return identity, nil
}

// DeviceByIdentifier resolves a physical identifier through the alias index
// and delegates to DeviceByID. Both hardware addresses and serial numbers
// are keys of the same index, preserving the address-then-serial order the
// operator wrote them in.
func (s *VaultStore) DeviceByIdentifier(ctx context.Context, identifier string) (*interfaces.DeviceIdentity, error) {
	if !s.connected {
		return nil, interfaces.ErrNotConnected
	}

	secretPath := s.dataPathFor("identifiers", identifier)
	secret, err := s.client.Logical().ReadWithContext(ctx, secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identifier: %w", err)
	}
	if secret == nil || secret.Data == nil {
		s.log.Warn("No device found for identifier", slog.String("identifier", identifier))
		return nil, nil
	}

	fields, err := kvData(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid alias record for %s: %w", identifier, err)
	}

	deviceID := stringField(fields, "device_id", "")
	if deviceID == "" {
		s.log.Warn("Alias record has no device id", slog.String("identifier", identifier))
		return nil, nil
	}

	return s.DeviceByID(ctx, deviceID)
}

// ListDeviceIDs lists the devices path of the KV v2 metadata tree.
func (s *VaultStore) ListDeviceIDs(ctx context.Context) ([]string, error) {
	if !s.connected {
		return nil, interfaces.ErrNotConnected
	}

	listPath := path.Join(s.mountPath, "metadata", s.dataPath, "devices")
	secret, err := s.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected list response from Vault")
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := k.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *VaultStore) dataPathFor(kind, key string) string {
	return path.Join(s.mountPath, "data", s.dataPath, kind, key)
}

// kvData unwraps the KV v2 response envelope.
func kvData(secret *api.Secret) (map[string]interface{}, error) {
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing KV v2 data envelope")
	}
	return data, nil
}

func identityFromFields(fields map[string]interface{}) *interfaces.DeviceIdentity {
	return &interfaces.DeviceIdentity{
		ThingName:         stringField(fields, "thing_name", ""),
		IoTDataEndpoint:   stringField(fields, "iot_endpoint", ""),
		AWSRegion:         stringField(fields, "aws_region", ""),
		RootCAMaterial:    stringField(fields, "root_ca_path", ""),
		CertificatePEM:    stringField(fields, "certificate_pem", ""),
		PrivateKeyPEM:     stringField(fields, "private_key_pem", ""),
		RoleAlias:         stringField(fields, "role_alias", ""),
		RoleAliasEndpoint: stringField(fields, "role_alias_endpoint", ""),
		AgentVersion:      stringField(fields, "nucleus_version", ""),
		DeploymentGroup:   stringField(fields, "deployment_group", ""),
		InitialComponents: interfaces.SplitComponents(stringField(fields, "initial_components", "")),
		ProxyURL:          stringField(fields, "proxy_url", ""),
		MQTTPort:          intField(fields, "mqtt_port"),
		CustomDomain:      stringField(fields, "custom_domain", ""),
	}
}

func stringField(fields map[string]interface{}, key, fallback string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return fallback
}

// intField tolerates the json.Number values the Vault client produces.
func intField(fields map[string]interface{}, key string) int {
	switch v := fields[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
