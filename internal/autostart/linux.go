package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"backtomatic/internal/util"
)

const unitName = "backtomatic-watch.service"

const serviceTemplate = `[Unit]
Description=BackTomatic folder backup
After=network-online.target

[Service]
ExecStart={{.Command}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

type LinuxAutoStarter struct {
	// Dir overrides ~/.config/systemd/user.
	Dir string
	run runner
}

func (l *LinuxAutoStarter) servicePath() (string, error) {
	dir := l.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config", "systemd", "user")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dir, unitName), nil
}

func (l *LinuxAutoStarter) Install(execPath string, args []string) error {
	path, err := l.servicePath()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	tmpl := template.Must(template.New("service").Parse(serviceTemplate))
	if err := tmpl.Execute(f, map[string]string{"Command": commandLine(execPath, args)}); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	cmds := [][]string{
		{"systemctl", "--user", "daemon-reload"},
		{"systemctl", "--user", "enable", unitName},
		{"systemctl", "--user", "start", unitName},
	}

	for _, c := range cmds {
		if out, err := l.run(c[0], c[1:]...); err != nil {
			return fmt.Errorf("failed to run %v: %w\n%s", c, err, out)
		}
	}

	return nil
}

func (l *LinuxAutoStarter) Uninstall() error {
	cmds := [][]string{
		{"systemctl", "--user", "stop", unitName},
		{"systemctl", "--user", "disable", unitName},
	}

	for _, c := range cmds {
		_, _ = l.run(c[0], c[1:]...)
	}

	path, err := l.servicePath()
	if err != nil {
		return err
	}

	return util.RemoveIfExists(path)
}

func (l *LinuxAutoStarter) IsInstalled() (bool, error) {
	path, err := l.servicePath()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	return err == nil, nil
}

// commandLine quotes arguments the way systemd's ExecStart expects.
func commandLine(execPath string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{execPath}, args...) {
		if strings.ContainsAny(a, " \t\"\\") {
			a = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a) + `"`
		}
		parts = append(parts, a)
	}

	return strings.Join(parts, " ")
}
