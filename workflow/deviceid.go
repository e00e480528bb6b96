package workflow

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const sysClassNet = "/sys/class/net"

// FallbackDeviceIdentifier is used when neither a MAC address nor a
// hostname can be determined.
const FallbackDeviceIdentifier = "default-device"

// ResolveDeviceIdentifier derives the device's lookup identifier: the MAC
// address of the first physical interface, the hostname, or a fixed
// fallback, in that order.
func ResolveDeviceIdentifier(log *slog.Logger) string {
	if mac := firstInterfaceMAC(sysClassNet); mac != "" {
		log.Debug("Resolved device identifier from interface MAC", slog.String("identifier", mac))
		return mac
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		log.Debug("Resolved device identifier from hostname", slog.String("identifier", hostname))
		return hostname
	}

	log.Warn("Could not resolve a device identifier, using fallback",
		slog.String("identifier", FallbackDeviceIdentifier))
	return FallbackDeviceIdentifier
}

// firstInterfaceMAC returns the colon-stripped MAC of eth0 when present,
// otherwise of the first non-loopback interface in lexical order.
func firstInterfaceMAC(netDir string) string {
	entries, err := os.ReadDir(netDir)
	if err != nil {
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() != "lo" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for i, name := range names {
		if name == "eth0" && i != 0 {
			names[0], names[i] = names[i], names[0]
			break
		}
	}

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(netDir, name, "address"))
		if err != nil {
			continue
		}
		mac := strings.ReplaceAll(strings.TrimSpace(string(raw)), ":", "")
		if mac != "" && mac != strings.Repeat("0", len(mac)) {
			return mac
		}
	}
	return ""
}
