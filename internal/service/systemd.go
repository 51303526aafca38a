package service

import (
	"os"
	"path/filepath"
)

const systemdTemplate = `[Unit]
Description=streamscribe live transcription daemon
After=sound.target

[Service]
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
RestartSec=3
{{- range $k, $v := .Env }}
Environment={{$k}}={{$v}}
{{- end }}

[Install]
WantedBy=default.target
`

// SystemdPath returns the user unit path for a label.
func SystemdPath(label string) string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "systemd", "user", label+".service")
}

// WriteUnit writes a systemd user unit. Output goes to the journal.
func WriteUnit(params Params) (string, error) {
	path := SystemdPath(params.Label)
	return path, render(path, "systemd", systemdTemplate, params)
}
