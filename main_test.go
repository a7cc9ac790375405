package mcpproxy

import (
	"os"
	"testing"

	"github.com/viant/mcp-proxy/internal/mcptest"
)

func TestMain(m *testing.M) {
	mcptest.RunIfRequested()
	os.Exit(m.Run())
}
