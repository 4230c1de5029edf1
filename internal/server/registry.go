package server

import (
	"net"
	"sync"
)

// registry tracks live client connections so shutdown can close every
// one of them. The accept loop adds entries and each connection
// goroutine removes its own on exit.
type registry struct {
	mu    sync.Mutex
	conns map[string]net.Conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]net.Conn)}
}

func (r *registry) add(conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.RemoteAddr().String()] = conn
}

func (r *registry) remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, addr)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, conn := range r.conns {
		_ = conn.Close()
		delete(r.conns, addr)
	}
}
