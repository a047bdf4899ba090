package autostart

import (
	"fmt"
	"os/exec"
	"runtime"
)

// AutoStarter registers a command to run when the user logs in.
type AutoStarter interface {
	Install(execPath string, args []string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

type runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{run: execRunner}
	case "linux":
		return &LinuxAutoStarter{run: execRunner}
	default:
		return &UnsupportedAutoStarter{}
	}
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_ string, _ []string) error {
	return fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}
