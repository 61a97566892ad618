package core

import "context"

// TransportHandle identifies one connected audio output. Opaque to the session.
type TransportHandle string

// PlaybackID identifies a single Play call. Completion callbacks carry it so a
// callback belonging to a superseded track can be told apart from the current one.
type PlaybackID uint64

// Transport owns real-time audio I/O for rooms.
//
// Play replaces whatever the handle is currently playing; the replaced playback
// never reports completion. Stop never reports completion either. Completion
// callbacks are invoked from the transport's own goroutines, never synchronously
// from inside Play or Stop.
type Transport interface {
	Connect(ctx context.Context, target string) (TransportHandle, error)
	Play(ctx context.Context, h TransportHandle, locator string) (PlaybackID, error)
	Stop(h TransportHandle)
	// OnCompletion replaces any callback previously registered for h.
	OnCompletion(h TransportHandle, fn func(PlaybackID))
	Connected(h TransportHandle) bool
	Disconnect(h TransportHandle)
}
