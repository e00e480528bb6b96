package identity

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// StoreFor creates an identity store from a location URI.
//
// Supported forms:
//   - /path/to/devices.db or file:///path or sqlite:///path - SQLite file
//   - vault://host:8200/<mount>/<data-path>?token=... - Vault KV v2
//     (tls=off in the query switches the address to plain http)
//
// Returns an error for unsupported schemes.
func StoreFor(locationURI string, log *slog.Logger) (interfaces.IdentityStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid identity store location %q: %w", locationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "", "file", "sqlite":
		dbPath := u.Path
		if u.Scheme == "" {
			dbPath = locationURI
		} else if u.Host != "" {
			// Relative form like sqlite://devices.db.
			dbPath = path.Join(u.Host, u.Path)
		}
		return NewSQLiteStore(dbPath, log), nil

	case "vault":
		scheme := "https"
		if u.Query().Get("tls") == "off" {
			scheme = "http"
		}
		address := fmt.Sprintf("%s://%s", scheme, u.Host)

		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) < 2 || segments[0] == "" {
			return nil, fmt.Errorf("vault location %q must include mount and data path", locationURI)
		}
		mountPath := segments[0]
		dataPath := path.Join(segments[1:]...)

		return NewVaultStore(address, mountPath, dataPath, u.Query().Get("token"), log)

	default:
		return nil, fmt.Errorf("unsupported identity store scheme: %s", u.Scheme)
	}
}
