package interfaces

import "context"

// IdentityStore provides read-only access to device enrollment records.
//
// All lookup operations require a prior explicit Connect; calling while
// disconnected returns ErrNotConnected. A record that does not exist is a
// normal empty result (nil identity, nil error), not an error - only
// connection and query failures are reported as errors.
type IdentityStore interface {
	// Connect opens the underlying store. Connecting twice is harmless.
	Connect(ctx context.Context) error

	// Close releases the store. Safe to call on a disconnected store.
	Close() error

	// DeviceByID looks up an enrollment record by device id.
	DeviceByID(ctx context.Context, deviceID string) (*DeviceIdentity, error)

	// DeviceByIdentifier resolves a physical identifier (hardware address
	// or serial number, tried in that order) to a device id via the alias
	// index, then delegates to DeviceByID.
	DeviceByIdentifier(ctx context.Context, identifier string) (*DeviceIdentity, error)

	// ListDeviceIDs returns all enrolled device ids in stable order.
	ListDeviceIDs(ctx context.Context) ([]string, error)
}

// ProgressFunc receives installation progress before each step's side effect
// runs. Percent is monotonically increasing over a single installation.
type ProgressFunc func(step string, percent int, message string)
