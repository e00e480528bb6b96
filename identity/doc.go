// Package identity provides read-only access to device enrollment records.
//
// Two backends implement interfaces.IdentityStore:
//
// SQLiteStore reads the operator-maintained SQLite database with a
// device_config table keyed by device_id and a device_identifiers alias
// table mapping hardware addresses and serial numbers to device ids.
//
// VaultStore reads the same records from HashiCorp Vault KV v2, with
// records under <path>/devices/<device_id> and the alias index under
// <path>/identifiers/<identifier>.
//
// StoreFor selects a backend from a location URI; a bare filesystem path or
// sqlite:// URI selects SQLite, vault:// selects Vault.
package identity
