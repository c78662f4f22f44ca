// Package tool defines the tool dispatch contract.
//
// The package is split by concern:
//   - descriptor, type_system: tool and parameter descriptions
//   - registry, source_*: discovery of units into an immutable Registry
//   - coerce: binding untyped input to declared parameter types
//   - dispatcher, envelope: invocation and the uniform result shape
//   - http_adapter, stdio_adapter: out-of-process units declared by manifest
//
// Transports (HTTP, MCP, CLI) and the orchestration layer share one
// Dispatcher and one Registry, both passed explicitly.
package tool
