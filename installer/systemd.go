package installer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"
)

// DefaultUnitDir is where systemd expects locally managed units.
const DefaultUnitDir = "/etc/systemd/system"

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Greengrass Core
After=network.target

[Service]
Type=simple
PIDFile={{.Root}}/alts/loader.pid
RemainAfterExit=no
Restart=on-failure
RestartSec=10
User={{.User}}
Group={{.Group}}
Environment="JAVA_HOME={{.JavaHome}}"
ExecStart=/usr/bin/java -Dlog.store=FILE -Droot={{.Root}} -jar {{.Root}}/lib/Greengrass.jar --config-path {{.Root}}/config/config.yaml
StandardOutput=journal
StandardError=journal

[Install]
WantedBy=multi-user.target
`))

type unitParams struct {
	Root     string
	User     string
	Group    string
	JavaHome string
}

// renderUnit produces the systemd unit file content.
func renderUnit(params unitParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("failed to render unit file: %w", err)
	}
	return buf.Bytes(), nil
}

// registerUnit writes the unit file into the unit directory, reloads
// systemd and enables the service. In dry mode the unit is rendered but
// never written; the systemctl calls go through the recording runner.
func (d *Driver) registerUnit(ctx context.Context, params unitParams) error {
	content, err := renderUnit(params)
	if err != nil {
		return err
	}

	unitPath := filepath.Join(d.cfg.UnitDir, d.cfg.ServiceName+".service")
	if d.cfg.DryRun {
		d.log.Info("Dry run, not installing unit file", slog.String("path", unitPath))
	} else if err := os.WriteFile(unitPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write unit file %s: %w", unitPath, err)
	}

	if err := d.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	if err := d.runner.Run(ctx, "systemctl", "enable", d.cfg.ServiceName+".service"); err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}
	return nil
}
