package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// deviceColumns is the projection shared by all record queries.
const deviceColumns = `device_id, thing_name, iot_endpoint, aws_region,
root_ca_path, certificate_pem, private_key_pem, role_alias,
role_alias_endpoint, nucleus_version, deployment_group,
initial_components, proxy_url, mqtt_port, custom_domain`

// SQLiteStore implements interfaces.IdentityStore over a local SQLite file.
type SQLiteStore struct {
	path string
	log  *slog.Logger
	db   *sql.DB
}

// NewSQLiteStore creates a store for the database at path. No connection is
// made until Connect.
func NewSQLiteStore(path string, log *slog.Logger) *SQLiteStore {
	return &SQLiteStore{path: path, log: log}
}

// Connect opens the database and verifies it is reachable.
func (s *SQLiteStore) Connect(ctx context.Context) error {
	if s.db != nil {
		s.log.Warn("Identity store already connected", slog.String("path", s.path))
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("cannot open identity database %s: %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("cannot reach identity database %s: %w", s.path, err)
	}

	s.db = db
	s.log.Info("Connected to identity database", slog.String("path", s.path))
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.log.Debug("Disconnected from identity database")
	return err
}

// DeviceByID looks up an enrollment record by device id. A missing record is
// a nil result, not an error.
func (s *SQLiteStore) DeviceByID(ctx context.Context, deviceID string) (*interfaces.DeviceIdentity, error) {
	if s.db == nil {
		return nil, interfaces.ErrNotConnected
	}

	query := fmt.Sprintf("SELECT %s FROM device_config WHERE device_id = ? LIMIT 1", deviceColumns)
	row := s.db.QueryRowContext(ctx, query, deviceID)

	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Warn("No device configuration found", slog.String("deviceID", deviceID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading device configuration: %w", err)
	}

	s.log.Info("Found device configuration", slog.String("deviceID", deviceID))
	return identity, nil
}

// DeviceByIdentifier resolves a physical identifier to a device id through
// the alias table - hardware address first, then serial number - and
// delegates to DeviceByID.
func (s *SQLiteStore) DeviceByIdentifier(ctx context.Context, identifier string) (*interfaces.DeviceIdentity, error) {
	if s.db == nil {
		return nil, interfaces.ErrNotConnected
	}

	for _, column := range []string{"mac_address", "serial_number"} {
		query := fmt.Sprintf("SELECT device_id FROM device_identifiers WHERE %s = ? LIMIT 1", column)

		var deviceID string
		err := s.db.QueryRowContext(ctx, query, identifier).Scan(&deviceID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error resolving device identifier: %w", err)
		}

		s.log.Debug("Resolved device identifier",
			slog.String("identifier", identifier),
			slog.String("deviceID", deviceID))
		return s.DeviceByID(ctx, deviceID)
	}

	s.log.Warn("No device found for identifier", slog.String("identifier", identifier))
	return nil, nil
}

// ListDeviceIDs returns all enrolled device ids ordered by id.
func (s *SQLiteStore) ListDeviceIDs(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, interfaces.ErrNotConnected
	}

	rows, err := s.db.QueryContext(ctx, "SELECT device_id FROM device_config ORDER BY device_id")
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning device id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}

	s.log.Debug("Listed devices", slog.Int("count", len(ids)))
	return ids, nil
}

// scanIdentity maps one device_config row to a DeviceIdentity.
func scanIdentity(row *sql.Row) (*interfaces.DeviceIdentity, error) {
	var (
		identity   interfaces.DeviceIdentity
		version    sql.NullString
		group      sql.NullString
		components sql.NullString
		proxyURL   sql.NullString
		mqttPort   sql.NullInt64
		domain     sql.NullString
	)

	err := row.Scan(
		&identity.DeviceID,
		&identity.ThingName,
		&identity.IoTDataEndpoint,
		&identity.AWSRegion,
		&identity.RootCAMaterial,
		&identity.CertificatePEM,
		&identity.PrivateKeyPEM,
		&identity.RoleAlias,
		&identity.RoleAliasEndpoint,
		&version,
		&group,
		&components,
		&proxyURL,
		&mqttPort,
		&domain,
	)
	if err != nil {
		return nil, err
	}

	identity.AgentVersion = version.String
	identity.DeploymentGroup = group.String
	identity.InitialComponents = interfaces.SplitComponents(components.String)
	identity.ProxyURL = proxyURL.String
	identity.MQTTPort = int(mqttPort.Int64)
	identity.CustomDomain = domain.String

	return &identity, nil
}
