/*
Package ports defines the driven ports (interfaces) for the framecast engine.

These interfaces decouple compositing and counting from external
implementations, allowing the studio to work with various event stores, frame
sources and share mechanisms.

# Key Interfaces

  - EventStore: append-only action log with per-kind counts and a push channel.
  - FrameRegistry: resolves the currently active frame (and others by name).
  - Sharer: hands a composite to a native share mechanism.
  - Studio: what inbound adapters (HTTP, MCP, CLI) drive.
*/
package ports
