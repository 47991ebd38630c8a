package oauth

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Ensure SystemBrowser implements the interface.
var _ driven.BrowserLauncher = SystemBrowser{}

// SystemBrowser opens URLs with the platform's default browser.
type SystemBrowser struct{}

// Open implements driven.BrowserLauncher.
func (SystemBrowser) Open(url string) error {
	return OpenBrowser(url)
}

// OpenBrowser opens the default browser to the given URL.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
