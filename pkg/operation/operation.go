package operation

import (
	"github.com/go-training/osu-companion/pkg/operation/account"
	"github.com/go-training/osu-companion/pkg/operation/profile"
	"github.com/go-training/osu-companion/pkg/operation/scores"

	"github.com/mark3labs/mcp-go/server"
)

/*
RegisterSessionTools registers the osu! tools to the specified MCPServer instance.

Parameters:
  - s: Pointer to the MCPServer instance where the tools will be registered.

Every handler expects a core.SessionProvider in its context (see core.WithSession).
*/
func RegisterSessionTools(s *server.MCPServer) {
	tool := &Tool{}

	tool.RegisterRead(server.ServerTool{
		Tool:    profile.ProfileTool,
		Handler: profile.HandleProfileTool,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    profile.UserTool,
		Handler: profile.HandleUserTool,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    scores.BestScoresTool,
		Handler: scores.HandleBestScoresTool,
	})
	tool.RegisterRead(server.ServerTool{
		Tool:    account.SessionTool,
		Handler: account.HandleSessionTool,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    account.LoginTool,
		Handler: account.HandleLoginTool,
	})
	tool.RegisterWrite(server.ServerTool{
		Tool:    account.LogoutTool,
		Handler: account.HandleLogoutTool,
	})

	s.AddTools(tool.Tools()...)
}

/*
Tool manages collections of tools to be registered with an MCPServer.

Fields:
  - write: Stores all ServerTools registered as write operations.
  - read: Stores all ServerTools registered as read operations.
*/
type Tool struct {
	write []server.ServerTool
	read  []server.ServerTool
}

/*
RegisterWrite registers a ServerTool as a write operation.

Parameters:
  - s: The ServerTool instance to register.

This method appends the tool to the write slice, indicating it is a write-type operation.
*/
func (t *Tool) RegisterWrite(s server.ServerTool) {
	t.write = append(t.write, s)
}

/*
RegisterRead registers a ServerTool as a read operation.

Parameters:
  - s: The ServerTool instance to register.

This method appends the tool to the read slice, indicating it is a read-type operation.
*/
func (t *Tool) RegisterRead(s server.ServerTool) {
	t.read = append(t.read, s)
}

/*
Tools returns all registered ServerTools.

Returns:
  - []server.ServerTool: A slice containing all write and read tools, with write tools first followed by read tools.

This method combines all registered tools for convenient batch registration to the MCPServer.
*/
func (t *Tool) Tools() []server.ServerTool {
	tools := make([]server.ServerTool, 0, len(t.write)+len(t.read))
	tools = append(tools, t.write...)
	tools = append(tools, t.read...)
	return tools
}
