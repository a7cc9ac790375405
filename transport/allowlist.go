package transport

import (
	"sort"
	"strings"
)

// Allowlist represents stdio executables the proxy may spawn; a nil or empty allowlist allows everything
type Allowlist struct {
	commands map[string]bool
}

// Allows returns true if command basename is permitted
func (a *Allowlist) Allows(command string) bool {
	if a.IsEmpty() {
		return true
	}
	return a.commands[CommandBase(command)]
}

// Check returns a SecurityError when command is not permitted
func (a *Allowlist) Check(command string) error {
	if a.Allows(command) {
		return nil
	}
	return &SecurityError{Command: command, Base: CommandBase(command), Allowed: a.Commands()}
}

// IsEmpty returns true when no restriction applies
func (a *Allowlist) IsEmpty() bool {
	return a == nil || len(a.commands) == 0
}

// Commands returns sorted allowed basenames
func (a *Allowlist) Commands() []string {
	if a == nil {
		return nil
	}
	result := make([]string, 0, len(a.commands))
	for command := range a.commands {
		result = append(result, command)
	}
	sort.Strings(result)
	return result
}

// NewAllowlist creates an allowlist from basenames, blank entries are skipped
func NewAllowlist(commands ...string) *Allowlist {
	ret := &Allowlist{commands: map[string]bool{}}
	for _, command := range commands {
		if command = strings.TrimSpace(command); command != "" {
			ret.commands[command] = true
		}
	}
	return ret
}

// CommandBase strips the path and a single extension: /usr/bin/python3.9 -> python3
func CommandBase(command string) string {
	base := strings.TrimSpace(command)
	if index := strings.LastIndexAny(base, `/\`); index != -1 {
		base = base[index+1:]
	}
	if index := strings.LastIndex(base, "."); index > 0 {
		base = base[:index]
	}
	return base
}
