// Package call is the boundary to the third-party conferencing collaborator.
// The sync core only needs a call-active flag and opaque media sink handles;
// the signaling protocol itself lives behind this interface.
package call

import "context"

// MediaSink is an opaque handle to a local or remote media renderer
type MediaSink interface {
	Play(trackID string) error
	Stop() error
}

// Conferencing is the narrow interface the engine consumes around a
// conferencing session identifier
type Conferencing interface {
	Join(ctx context.Context, sessionID string) error
	Publish(ctx context.Context, audio, video bool) error
	SubscribeRemote(ctx context.Context, userID string, sink MediaSink) error
	Leave(ctx context.Context) error
}

// Session tracks whether a call is active for the current conversation
type Session struct {
	conferencing Conferencing
	active       bool
}

// NewSession wraps a conferencing implementation
func NewSession(c Conferencing) *Session {
	return &Session{conferencing: c}
}

// Active reports whether a call is in progress
func (s *Session) Active() bool {
	return s.active
}

// Start joins the conferencing session and publishes local media
func (s *Session) Start(ctx context.Context, sessionID string, audio, video bool) error {
	if err := s.conferencing.Join(ctx, sessionID); err != nil {
		return err
	}
	if err := s.conferencing.Publish(ctx, audio, video); err != nil {
		s.conferencing.Leave(ctx)
		return err
	}
	s.active = true
	return nil
}

// End leaves the conferencing session
func (s *Session) End(ctx context.Context) error {
	if !s.active {
		return nil
	}
	s.active = false
	return s.conferencing.Leave(ctx)
}
