//go:build darwin

package focus

import (
	"os/exec"
	"strconv"
	"strings"
)

// axScript asks System Events for the frontmost process and its focused
// element. Output is one field per line; missing AX attributes come back as
// the literal "missing value".
const axScript = `
tell application "System Events"
	set frontProc to first application process whose frontmost is true
	set procID to unix id of frontProc
	set elemRole to ""
	set elemSubrole to ""
	set elemDesc to ""
	set winNum to 0
	try
		set focusedElem to value of attribute "AXFocusedUIElement" of frontProc
		set elemRole to role of focusedElem
		try
			set elemSubrole to subrole of focusedElem
		end try
		try
			set elemDesc to description of focusedElem
		end try
	end try
	try
		set winNum to id of front window of frontProc
	end try
	return (procID as string) & "\n" & elemRole & "\n" & elemSubrole & "\n" & elemDesc & "\n" & (winNum as string)
end tell`

const selScript = `
tell application "System Events"
	set frontProc to first application process whose frontmost is true
	try
		set focusedElem to value of attribute "AXFocusedUIElement" of frontProc
		return value of attribute "AXSelectedTextRange" of focusedElem as string
	end try
	return ""
end tell`

type darwinIntrospector struct{}

func NewIntrospector() Introspector {
	return darwinIntrospector{}
}

// Available probes whether assistive access is granted by asking System
// Events for the frontmost process name.
func (darwinIntrospector) Available() bool {
	out, err := exec.Command("osascript", "-e",
		`tell application "System Events" to get name of first application process whose frontmost is true`).Output()
	return err == nil && len(strings.TrimSpace(string(out))) > 0
}

func (darwinIntrospector) Capture() *Snapshot {
	out, err := exec.Command("osascript", "-e", axScript).Output()
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) < 5 {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return nil
	}
	winNum, _ := strconv.Atoi(strings.TrimSpace(lines[4]))

	snap := &Snapshot{
		ProcessID: pid,
		Element: ElementSignature{
			Role:         axValue(lines[1]),
			Subrole:      axValue(lines[2]),
			Identifier:   axValue(lines[3]),
			WindowNumber: winNum,
		},
	}
	if sel, err := exec.Command("osascript", "-e", selScript).Output(); err == nil {
		snap.Selection = strings.TrimSpace(string(sel))
	}
	return snap
}

// SecureInput checks whether any process holds the secure event input
// session (password fields set kCGSSessionSecureInputPID).
func (darwinIntrospector) SecureInput() bool {
	out, err := exec.Command("ioreg", "-l", "-d", "1", "-w", "0", "-c", "IOHIDSystem").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "SecureInput")
}

func axValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "missing value" {
		return ""
	}
	return s
}
