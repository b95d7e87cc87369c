//go:build linux

package focus

import (
	"os/exec"
	"strconv"
	"strings"
)

// linuxIntrospector reads the active X11 window via xdotool/xprop. Wayland
// compositors without XWayland expose nothing to probe; Capture then
// returns nil and the paste path deterministically falls back to copy.
type linuxIntrospector struct{}

func NewIntrospector() Introspector {
	return linuxIntrospector{}
}

func (linuxIntrospector) Available() bool {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return false
	}
	err := exec.Command("xdotool", "getactivewindow").Run()
	return err == nil
}

func (linuxIntrospector) Capture() *Snapshot {
	out, err := exec.Command("xdotool", "getactivewindow").Output()
	if err != nil {
		return nil
	}
	winID := strings.TrimSpace(string(out))
	if winID == "" {
		return nil
	}
	winNum, err := strconv.Atoi(winID)
	if err != nil {
		return nil
	}

	pidOut, err := exec.Command("xdotool", "getwindowpid", winID).Output()
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidOut)))
	if err != nil || pid <= 0 {
		return nil
	}

	snap := &Snapshot{
		ProcessID: pid,
		Element: ElementSignature{
			WindowNumber: winNum,
		},
	}
	// WM_CLASS gives a stable role-ish identity for the window.
	if cls, err := exec.Command("xprop", "-id", winID, "WM_CLASS").Output(); err == nil {
		snap.Element.Role = parseWMClass(string(cls))
	}
	if name, err := exec.Command("xdotool", "getwindowname", winID).Output(); err == nil {
		snap.Element.Identifier = strings.TrimSpace(string(name))
	}
	return snap
}

// SecureInput has no X11 equivalent of the macOS secure event input flag.
func (linuxIntrospector) SecureInput() bool { return false }

func parseWMClass(s string) string {
	// WM_CLASS(STRING) = "instance", "Class"
	if i := strings.LastIndex(s, "\""); i > 0 {
		if j := strings.LastIndex(s[:i], "\""); j >= 0 {
			return s[j+1 : i]
		}
	}
	return ""
}
