package ws

import "sync"

type room struct {
	mu    sync.RWMutex
	conns map[*clientConn]struct{}
}

func newRoom() *room { return &room{conns: map[*clientConn]struct{}{}} }

func (r *room) add(c *clientConn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

func (r *room) remove(c *clientConn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	c.close()
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// broadcast queues msg on every socket and returns without waiting on I/O.
// Sockets whose queue is full are dropped.
func (r *room) broadcast(msg []byte) {
	r.mu.RLock()
	var stalled []*clientConn
	for c := range r.conns {
		if !c.enqueue(msg) {
			stalled = append(stalled, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range stalled {
		r.remove(c)
	}
}
