// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package listener

import (
	"net"
	"sync"
)

// serializeListeners wraps lns so that, across all of them, only one
// accepted connection is handed out at a time. Every socket keeps
// accepting on its own; an accepted connection then waits for the
// previous one to be closed. Waiters are released in the order they
// were accepted.
func serializeListeners(lns []net.Listener) []net.Listener {
	turn := make(chan struct{}, 1)

	out := make([]net.Listener, len(lns))
	for i, ln := range lns {
		out[i] = &serialListener{
			Listener: ln,
			turn:     turn,
			closed:   make(chan struct{}),
		}
	}
	return out
}

type serialListener struct {
	net.Listener

	turn      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (l *serialListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	select {
	case l.turn <- struct{}{}:
	case <-l.closed:
		conn.Close()
		return nil, net.ErrClosed
	}
	return &serialConn{
		Conn: conn,
		release: func() {
			<-l.turn
		},
	}, nil
}

func (l *serialListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	return l.Listener.Close()
}

type serialConn struct {
	net.Conn

	releaseOnce sync.Once
	release     func()
}

func (c *serialConn) Close() error {
	err := c.Conn.Close()
	c.releaseOnce.Do(c.release)
	return err
}
