// Package video issues video-room sessions and participant join tokens. The
// media pipeline itself is out of scope.
package video

import (
	"context"
	"errors"
	"time"
)

// Role is the capability granted by a join token.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
	RoleModerator  Role = "moderator"
)

// ErrDisabled is returned by every call on a gateway built without provider
// credentials.
var ErrDisabled = errors.New("video: provider not configured")

// TokenOptions describe a join token.
type TokenOptions struct {
	Role       Role
	ExpireTime time.Time
	// Data is attached to the participant's connection, visible to the
	// other side of the call.
	Data string
}

// Gateway is the external video provider.
type Gateway interface {
	// CreateSession provisions a routed session and returns its identifier.
	CreateSession(ctx context.Context) (string, error)
	// GenerateToken mints a credential for joining sessionID.
	GenerateToken(sessionID string, opts TokenOptions) (string, error)
}

// Disabled is used when the provider is not configured. Bookings proceed
// without a session and join attempts fail with ErrDisabled.
type Disabled struct{}

func (Disabled) CreateSession(context.Context) (string, error) {
	return "", ErrDisabled
}

func (Disabled) GenerateToken(string, TokenOptions) (string, error) {
	return "", ErrDisabled
}

var _ Gateway = Disabled{}
