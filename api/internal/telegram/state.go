package telegram

import (
	"sync"

	"github.com/google/uuid"

	"nutrisnap/api/internal/session"
)

// chatSession is one chat's controller. Sessions live only in memory.
type chatSession struct {
	ID  string
	Ctl *session.Controller

	mu      sync.Mutex
	lastSeq uint64
}

// newest records seq and reports whether it is the latest update seen.
func (cs *chatSession) newest(seq uint64) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if seq <= cs.lastSeq {
		return false
	}
	cs.lastSeq = seq
	return true
}

func (r *Router) session(chatID int64) *chatSession {
	if v, ok := r.sessions.Load(chatID); ok {
		return v.(*chatSession)
	}

	id := uuid.NewString()
	cs := &chatSession{
		ID:  id,
		Ctl: session.New(r.Gateway, session.WithHistoryLimit(r.HistoryLimit), session.WithID(id)),
	}
	cs.Ctl.Subscribe(func(u session.Update) { r.render(cs, chatID, u) })
	v, _ := r.sessions.LoadOrStore(chatID, cs)
	return v.(*chatSession)
}
