/*
Package ports defines the boundary interfaces of the Parley engine.

Following Hexagonal Architecture, the core depends only on these
interfaces; adapters (Redis, in-memory, HTTP, MCP) and host applications
provide the implementations. External collaborators are replaceable:
agent nodes, the classification model, and the quality scorer are all
opaque units of work behind small interfaces.
*/
package ports
