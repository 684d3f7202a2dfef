// Package driving defines the operations the CLI and MCP adapters call:
// ingesting documents, retrieving excerpts, chatting and managing
// settings. internal/core/services implements them.
package driving
