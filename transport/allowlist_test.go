package transport

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBase(t *testing.T) {
	var testCases = []struct {
		command string
		expect  string
	}{
		{command: "python3", expect: "python3"},
		{command: "/usr/bin/python3.9", expect: "python3"},
		{command: "/usr/local/bin/node", expect: "node"},
		{command: `C:\tools\npx.cmd`, expect: "npx"},
		{command: "uvx.exe", expect: "uvx"},
		{command: ".hidden", expect: ".hidden"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, CommandBase(testCase.command), testCase.command)
	}
}

func TestAllowlist(t *testing.T) {
	var nilList *Allowlist
	assert.True(t, nilList.Allows("/bin/anything"))
	assert.True(t, NewAllowlist("", " ").Allows("rm"))

	allowlist := NewAllowlist(" python3", "node ")
	assert.True(t, allowlist.Allows("/usr/bin/python3.9"))
	assert.True(t, allowlist.Allows("node"))
	assert.False(t, allowlist.Allows("bash"))
	assert.Equal(t, []string{"node", "python3"}, allowlist.Commands())

	err := allowlist.Check("/bin/bash")
	var security *SecurityError
	require.ErrorAs(t, err, &security)
	assert.Equal(t, "bash", security.Base)
	assert.Contains(t, err.Error(), "bash")
	assert.Contains(t, err.Error(), "not in the allowed")
}

func TestNewStdio_DisallowedCommandIsNotSpawned(t *testing.T) {
	marker := t.TempDir() + "/spawned"
	client, err := NewStdio("touch", []string{marker}, WithAllowlist(NewAllowlist("python3")))
	assert.Nil(t, client)
	var security *SecurityError
	require.ErrorAs(t, err, &security)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
}
