// Package domain defines the MCP tool schemas and handlers for the agent
// read surface. Tools are read-only views over the domain services.
package domain
