package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNoRoom = errors.New("empty view target")

// Broadcaster delivers a frame to every listener of a room.
type Broadcaster interface {
	BroadcastRoom(room domain.RoomID, data core.Frame)
}

type viewMessage struct {
	Type   string             `json:"type"`
	Handle core.MessageHandle `json:"handle"`
	View   core.View          `json:"view"`
}

type roomView struct {
	handle core.MessageHandle
	frame  core.Frame
}

// Presenter renders session views into rooms over the signalling channel.
// Each room shows one view; late joiners receive the latest one.
type Presenter struct {
	out Broadcaster

	mu      sync.Mutex
	handles map[core.MessageHandle]domain.RoomID
	current map[domain.RoomID]roomView
}

func NewPresenter(out Broadcaster) *Presenter {
	return &Presenter{
		out:     out,
		handles: make(map[core.MessageHandle]domain.RoomID),
		current: make(map[domain.RoomID]roomView),
	}
}

// Send publishes a new view in the room named by target. The room's previous
// view, if any, is retired and editing it yields ErrStale.
func (p *Presenter) Send(_ context.Context, target string, v core.View) (core.MessageHandle, error) {
	if target == "" {
		return "", ErrNoRoom
	}
	room := domain.RoomID(target)
	h := core.MessageHandle(uuid.NewString())
	frame, err := encodeView(h, v)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if old, ok := p.current[room]; ok {
		delete(p.handles, old.handle)
	}
	p.handles[h] = room
	p.current[room] = roomView{handle: h, frame: frame}
	p.mu.Unlock()

	p.out.BroadcastRoom(room, frame)
	return h, nil
}

func (p *Presenter) Edit(_ context.Context, h core.MessageHandle, v core.View) error {
	frame, err := encodeView(h, v)
	if err != nil {
		return err
	}

	p.mu.Lock()
	room, ok := p.handles[h]
	if !ok {
		p.mu.Unlock()
		return core.ErrStale
	}
	p.current[room] = roomView{handle: h, frame: frame}
	p.mu.Unlock()

	p.out.BroadcastRoom(room, frame)
	return nil
}

// Current returns the frame of the view shown in room.
func (p *Presenter) Current(room domain.RoomID) (core.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.current[room]
	return v.frame, ok
}

// Clear removes room's view. The owning session notices on its next edit.
func (p *Presenter) Clear(room domain.RoomID) bool {
	p.mu.Lock()
	v, ok := p.current[room]
	if ok {
		delete(p.handles, v.handle)
		delete(p.current, room)
	}
	p.mu.Unlock()
	if ok {
		log.Info().Str("module", "signal.presenter").Str("room", string(room)).Msg("view cleared")
		b, _ := json.Marshal(map[string]any{"type": "view_cleared", "handle": v.handle})
		p.out.BroadcastRoom(room, b)
	}
	return ok
}

func encodeView(h core.MessageHandle, v core.View) (core.Frame, error) {
	return json.Marshal(viewMessage{Type: "view", Handle: h, View: v})
}
