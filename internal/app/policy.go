package app

import (
	"sync"

	"github.com/dkeye/Voicebox/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a listener whose signalling queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
	// OnDelivered resets whatever the policy remembers about member.
	OnDelivered(member core.MemberSession)
}

// SimplePolicy tolerates MaxDrops consecutive dropped frames before kicking.
// Views are idempotent, so losing one is harmless as long as a later one lands.
type SimplePolicy struct {
	MaxDrops int

	mu    sync.Mutex
	drops map[core.MemberSession]int
}

func NewSimplePolicy(maxDrops int) *SimplePolicy {
	return &SimplePolicy{MaxDrops: maxDrops, drops: make(map[core.MemberSession]int)}
}

func (p *SimplePolicy) OnBackPressure(_ core.RoomService, member core.MemberSession) BackpressureAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drops[member]++
	if p.drops[member] > p.MaxDrops {
		delete(p.drops, member)
		return KickMember
	}
	return DropFrame
}

func (p *SimplePolicy) OnDelivered(member core.MemberSession) {
	p.mu.Lock()
	delete(p.drops, member)
	p.mu.Unlock()
}
