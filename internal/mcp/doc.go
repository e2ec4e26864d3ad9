// Package mcp exposes the review control plane as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers review_start, review_state, review_extend and review_submit.
// Every tool call goes through a Controller, normally the reviewd HTTP API,
// so an agent and a human share the same single active session.
package mcp
