package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }
func (p stubPinger) Backend() string            { return "duckdb" }

func TestHealthTool(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want string
	}{
		{name: "no database", db: nil, want: `{"status":"ok","version":"1.2.3","database":"unchecked"}`},
		{name: "reachable", db: stubPinger{}, want: `{"status":"ok","version":"1.2.3","backend":"duckdb","database":"ok"}`},
		{name: "unreachable", db: stubPinger{err: errors.New("closed")}, want: `{"status":"degraded","version":"1.2.3","backend":"duckdb","database":"unreachable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(s, "1.2.3", tt.db)

			resp := call(t, s, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"health"},"id":1}`)
			require.Len(t, resp.Result.Content, 1)
			assert.JSONEq(t, tt.want, resp.Result.Content[0].Text)
		})
	}
}
