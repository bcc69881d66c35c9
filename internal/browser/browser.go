// Package browser opens URLs in the user's default viewer.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens a URL for the user to look at
type Opener interface {
	Open(url string) error
}

// New returns the platform opener when enabled and a Noop otherwise
func New(enabled bool) Opener {
	if !enabled {
		return Noop{}
	}
	return System{GOOS: runtime.GOOS}
}

// Noop ignores every URL
type Noop struct{}

func (Noop) Open(string) error { return nil }

// System starts the platform's URL handler without waiting for it to exit
type System struct {
	GOOS string
}

func (s System) Open(url string) error {
	name, args, err := Command(s.GOOS, url)
	if err != nil {
		return err
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	// Reap the child in the background; its exit status is of no interest.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Command returns the program and arguments that open url on goos
func Command(goos, url string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("opening a browser is not supported on %s", goos)
	}
}
