package node

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/link"
)

// linkMux serves the MSAP link to one application at a time. A new
// connection replaces the previous one.
type linkMux struct {
	handler link.FrameHandler

	conn *link.Conn
	lock sync.Mutex
}

// Send implements msap.Sender.
func (m *linkMux) Send(f *link.Frame) error {
	m.lock.Lock()
	conn := m.conn
	m.lock.Unlock()
	if conn == nil {
		return link.ErrClosed
	}
	return conn.Send(f)
}

// Connected tells whether an application is attached.
func (m *linkMux) Connected() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.conn != nil
}

func (m *linkMux) serve(ctx context.Context, rw io.ReadWriter) error {
	conn := link.NewConn(rw)
	conn.Handler = m.handler
	m.lock.Lock()
	prev := m.conn
	m.conn = conn
	m.lock.Unlock()
	if prev != nil {
		prev.Close()
	}
	defer func() {
		m.lock.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.lock.Unlock()
		conn.Close()
	}()
	return conn.Run(ctx)
}

// listenRunner accepts applications on a TCP listener.
type listenRunner struct {
	mux *linkMux
	ln  net.Listener
}

// Run implements Runnable.
func (r *listenRunner) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.ln.Close()
	}()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		glog.Infof("node: application connected from %s", conn.RemoteAddr())
		go func() {
			err := r.mux.serve(ctx, conn)
			glog.Infof("node: application %s disconnected: %v", conn.RemoteAddr(), err)
		}()
	}
}

// serialRunner serves the link on a serial port.
type serialRunner struct {
	mux  *linkMux
	port io.ReadWriteCloser
}

// Run implements Runnable.
func (r *serialRunner) Run(ctx context.Context) error {
	err := r.mux.serve(ctx, r.port)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
