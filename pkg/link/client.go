package link

import (
	"context"
	"sync"
)

// Result is the result of a request.
type Result struct {
	Err   error
	Frame *Frame
}

// Request represents a pending request waiting for its confirmation.
type Request struct {
	frame    *Frame
	resultCh chan Result
	next     *Request
}

// ID returns the frame id of the request.
func (r *Request) ID() FrameID {
	return r.frame.ID
}

// ResultChan returns the chan to retrieve result.
func (r *Request) ResultChan() <-chan Result {
	return r.resultCh
}

// Wait blocks until the confirmation arrives.
func (r *Request) Wait(ctx context.Context) (*Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-r.resultCh:
		return res.Frame, res.Err
	}
}

// Client sends requests over a Conn and matches confirmations.
type Client struct {
	conn  *Conn
	indCh chan *Frame
	id    FrameID
	head  *Request
	tail  *Request
	lock  sync.Mutex
}

// NewClient creates a client and wraps the conn.
func NewClient(conn *Conn) *Client {
	c := &Client{
		conn:  conn,
		indCh: make(chan *Frame, 16),
		id:    NewFrameID(),
	}
	conn.Handler = c
	return c
}

// Conn gets the wrapped Conn.
func (c *Client) Conn() *Conn {
	return c.conn
}

// Indications retrieves frames not confirming any request.
func (c *Client) Indications() <-chan *Frame {
	return c.indCh
}

// Do sends a request. The frame id is assigned here.
func (c *Client) Do(f *Frame) *Request {
	req := &Request{frame: f, resultCh: make(chan Result, 1)}
	c.lock.Lock()
	defer c.lock.Unlock()
	f.ID, c.id = c.id, c.id.Next()
	if err := c.conn.Send(f); err != nil {
		req.resultCh <- Result{Err: err}
		return req
	}
	if c.head == nil {
		c.head = req
	} else {
		c.tail.next = req
	}
	c.tail = req
	return req
}

// Call sends a request and waits for the confirmation.
func (c *Client) Call(ctx context.Context, f *Frame) (*Frame, error) {
	return c.Do(f).Wait(ctx)
}

// HandleFrame implements FrameHandler.
func (c *Client) HandleFrame(ctx context.Context, f *Frame) {
	c.lock.Lock()
	head, curr := c.head, c.head
	for ; curr != nil; curr = curr.next {
		if f.ConfirmOf(curr.frame) {
			if c.head = curr.next; c.head == nil {
				c.tail = nil
			}
			break
		}
	}
	c.lock.Unlock()
	if curr == nil {
		select {
		case c.indCh <- f:
		case <-ctx.Done():
		}
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	curr.next = nil
	curr.resultCh <- Result{Frame: f}
}

// Run wraps Conn.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.conn.Run(ctx)
}
