// Package sim runs the authoritative match handler headless against loopback
// peers. Every broadcast the handler issues is delivered synchronously to the
// peers' replica mirrors, so a run exercises the full authority-to-replica
// path without a Nakama server or a network.
package sim

import (
	"brawl/internal/replica"

	"github.com/heroiclabs/nakama-common/runtime"
)

type simPresence struct {
	userID   string
	username string
}

func (p *simPresence) GetUserId() string                 { return p.userID }
func (p *simPresence) GetSessionId() string              { return p.userID }
func (p *simPresence) GetNodeId() string                 { return "sim" }
func (p *simPresence) GetHidden() bool                   { return false }
func (p *simPresence) GetPersistence() bool              { return false }
func (p *simPresence) GetUsername() string               { return p.username }
func (p *simPresence) GetStatus() string                 { return "" }
func (p *simPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }

type simMessage struct {
	*simPresence
	opCode      int64
	data        []byte
	receiveTime int64
}

func (m *simMessage) GetOpCode() int64      { return m.opCode }
func (m *simMessage) GetData() []byte       { return m.data }
func (m *simMessage) GetReliable() bool     { return true }
func (m *simMessage) GetReceiveTime() int64 { return m.receiveTime }

// loopbackDispatcher implements runtime.MatchDispatcher by applying every
// broadcast directly to the registered peer mirrors, in issue order.
type loopbackDispatcher struct {
	mirrors map[string]*replica.Mirror
	label   string
	sent    int
}

func newLoopbackDispatcher() *loopbackDispatcher {
	return &loopbackDispatcher{mirrors: make(map[string]*replica.Mirror)}
}

func (d *loopbackDispatcher) attach(userID string, m *replica.Mirror) {
	d.mirrors[userID] = m
}

func (d *loopbackDispatcher) detach(userID string) {
	delete(d.mirrors, userID)
}

func (d *loopbackDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	d.sent++
	if len(presences) == 0 {
		for _, m := range d.mirrors {
			m.Apply(opCode, data)
		}
		return nil
	}
	for _, p := range presences {
		if m, ok := d.mirrors[p.GetUserId()]; ok {
			m.Apply(opCode, data)
		}
	}
	return nil
}

func (d *loopbackDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return d.BroadcastMessage(opCode, data, presences, sender, reliable)
}

func (d *loopbackDispatcher) MatchKick(presences []runtime.Presence) error { return nil }

func (d *loopbackDispatcher) MatchLabelUpdate(label string) error {
	d.label = label
	return nil
}
