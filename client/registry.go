package client

import "context"

// Registry provides read-only access to client registrations. The persistent
// registry is an external collaborator; the SSO core never writes to it.
type Registry interface {
	// Lookup resolves a client by its stable identifier. Unknown clients
	// return errors.ErrClientNotFound; registrations that exist but are
	// deactivated return errors.ErrClientInactive.
	Lookup(ctx context.Context, clientID string) (*Registration, error)
}
