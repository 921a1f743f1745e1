package link

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// Conn sends and receives frames over a byte stream.
type Conn struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler
	// OnError observes frames dropped by the receiver.
	OnError func(error)

	writeLock sync.Mutex
	decoder   Decoder
}

// NewConn creates a Conn.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{ReadWriter: rw}
}

// Send encodes and writes a frame.
func (c *Conn) Send(f *Frame) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	glog.V(2).Infof("link: send %s", f)
	_, err = c.ReadWriter.Write(Encode(b))
	return err
}

// Run receives frames until the stream fails or ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	c.decoder.Reset()
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			for _, b := range data {
				c.apply(ctx, c.decoder.Decode(b))
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the underlying stream if it can be closed.
func (c *Conn) Close() error {
	if closer, ok := c.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, 256)
		n, err := c.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case dataCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (c *Conn) apply(ctx context.Context, r DecodeResult) {
	if r.Err != nil {
		glog.Warningf("link: %v", r.Err)
		if c.OnError != nil {
			c.OnError(r.Err)
		}
		return
	}
	if r.Data == nil {
		return
	}
	f, err := DecodeFrame(r.Data)
	if err != nil {
		glog.Warningf("link: %v", err)
		if c.OnError != nil {
			c.OnError(err)
		}
		return
	}
	glog.V(2).Infof("link: recv %s", f)
	if h := c.Handler; h != nil {
		h.HandleFrame(ctx, f)
	}
}
