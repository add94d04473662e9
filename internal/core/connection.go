// Package core holds the session and user state model: registries, the
// membership and master-election protocol, and the selective data-stream
// multicast. Transport resources are owned by the transport package; the
// wire connection to clients is owned by the adapter.
package core

// Connection is the exclusive push channel to one connected client.
// Owned by the adapter; the adapter must Close() it.
type Connection interface {
	Emit(event string, payload any) error
	Close()
}
