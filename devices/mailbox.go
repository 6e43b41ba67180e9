package devices

import "sync"

// Mailbox holds at most one pending command. A Set before the pending
// command was taken replaces it.
type Mailbox struct {
	mu      sync.Mutex
	req     CommandRequest
	pending bool
}

func (m *Mailbox) Set(req CommandRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.req = req
	m.pending = true
}

func (m *Mailbox) TakeAndClear() (CommandRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return CommandRequest{}, false
	}
	req := m.req
	m.req = CommandRequest{}
	m.pending = false
	return req, true
}
