package msap

import (
	"context"
	"fmt"
	"time"

	"github.com/robotalks/meshota/pkg/link"
	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/otap"
)

// Client issues MSAP requests over a link.
type Client struct {
	*link.Client
}

// NewClient wraps a link client.
func NewClient(c *link.Client) *Client {
	return &Client{Client: c}
}

func (c *Client) call(ctx context.Context, fn byte, payload []byte) ([]byte, error) {
	cnf, err := c.Call(ctx, &link.Frame{Func: fn, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%s: %v", FuncName(fn), err)
	}
	return cnf.Payload, nil
}

func (c *Client) result(ctx context.Context, fn byte, payload []byte) (uint8, error) {
	p, err := c.call(ctx, fn, payload)
	if err != nil {
		return 0, err
	}
	if len(p) != 1 {
		return 0, fmt.Errorf("%s: %v", FuncName(fn), ErrInvalidLength)
	}
	return p[0], nil
}

// StackStart starts the stack.
func (c *Client) StackStart(ctx context.Context) (otap.StackResult, error) {
	r, err := c.result(ctx, FuncStackStart, encode(&StackStartReq{}))
	return otap.StackResult(r), err
}

// StackStop stops the stack, which reboots the node.
func (c *Client) StackStop(ctx context.Context) (otap.StackResult, error) {
	r, err := c.result(ctx, FuncStackStop, nil)
	return otap.StackResult(r), err
}

// Start opens a scratchpad transfer.
func (c *Client) Start(ctx context.Context, numBytes uint32, seq uint8) (otap.StartResult, error) {
	r, err := c.result(ctx, FuncScratchpadStart, encode(&StartReq{NumBytes: numBytes, Seq: seq}))
	return otap.StartResult(r), err
}

// Block sends a block of the transfer.
func (c *Client) Block(ctx context.Context, start uint32, data []byte) (otap.BlockResult, error) {
	r, err := c.result(ctx, FuncScratchpadBlock, (&BlockReq{Start: start, Data: data}).Bytes())
	return otap.BlockResult(r), err
}

// Upload transfers a whole scratchpad, reporting progress after each
// block.
func (c *Client) Upload(ctx context.Context, img []byte, seq uint8, progress func(sent, total int)) error {
	res, err := c.Start(ctx, uint32(len(img)), seq)
	if err != nil {
		return err
	}
	if res != otap.StartSuccess {
		return fmt.Errorf("start: %s", res)
	}
	for off := 0; off < len(img); off += otap.MaxBlockSize {
		end := off + otap.MaxBlockSize
		if end > len(img) {
			end = len(img)
		}
		r, err := c.Block(ctx, uint32(off), img[off:end])
		if err != nil {
			return err
		}
		if progress != nil {
			progress(end, len(img))
		}
		switch {
		case r == otap.BlockCompletedOK && end == len(img):
			return nil
		case r != otap.BlockSuccess:
			return fmt.Errorf("block at %d: %s", off, r)
		}
	}
	return fmt.Errorf("transfer not completed")
}

// Status reads the scratchpad status.
func (c *Client) Status(ctx context.Context) (*ScratchpadStatus, error) {
	p, err := c.call(ctx, FuncScratchpadStatus, nil)
	if err != nil {
		return nil, err
	}
	var st ScratchpadStatus
	if err = decode(p, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Bootable marks the stored scratchpad for processing.
func (c *Client) Bootable(ctx context.Context) (otap.BootableResult, error) {
	r, err := c.result(ctx, FuncScratchpadBoot, nil)
	return otap.BootableResult(r), err
}

// Clear erases the scratchpad.
func (c *Client) Clear(ctx context.Context) (otap.ClearResult, error) {
	r, err := c.result(ctx, FuncScratchpadClear, nil)
	return otap.ClearResult(r), err
}

// RemoteStatus asks target for its status. Snapshots arrive as
// indications.
func (c *Client) RemoteStatus(ctx context.Context, target mesh.Address) (otap.RemoteResult, error) {
	r, err := c.result(ctx, FuncRemoteStatus, encode(&RemoteStatusReq{Target: uint32(target)}))
	return otap.RemoteResult(r), err
}

// RemoteUpdate asks target to install its scratchpad seq after delay.
func (c *Client) RemoteUpdate(ctx context.Context, target mesh.Address, seq uint8, delay time.Duration) (otap.RemoteResult, error) {
	secs := delay / time.Second
	if secs > 0xffff {
		return 0, fmt.Errorf("delay %s too long", delay)
	}
	req := &RemoteUpdateReq{Target: uint32(target), Seq: seq, DelaySeconds: uint16(secs)}
	r, err := c.result(ctx, FuncRemoteUpdate, encode(req))
	return otap.RemoteResult(r), err
}

// WriteTarget sets the target scratchpad and action.
func (c *Client) WriteTarget(ctx context.Context, t otap.Target) (otap.TargetResult, error) {
	req := targetReq(t)
	r, err := c.result(ctx, FuncTargetWrite, encode(&req))
	return otap.TargetResult(r), err
}

// ReadTarget reads the target scratchpad and action.
func (c *Client) ReadTarget(ctx context.Context) (otap.Target, error) {
	p, err := c.call(ctx, FuncTargetRead, nil)
	if err != nil {
		return otap.Target{}, err
	}
	var cnf TargetReadCnf
	if err = decode(p, &cnf); err != nil {
		return otap.Target{}, err
	}
	return cnf.Target(), nil
}

// ReadBlock reads back n bytes of the stored scratchpad at start.
func (c *Client) ReadBlock(ctx context.Context, start uint32, n uint8) (otap.ReadResult, []byte, error) {
	p, err := c.call(ctx, FuncScratchpadBlockRd, encode(&BlockReadReq{Start: start, NumBytes: n}))
	if err != nil {
		return 0, nil, err
	}
	if len(p) < 1 {
		return 0, nil, ErrInvalidLength
	}
	return otap.ReadResult(p[0]), p[1:], nil
}

// Download reads back numBytes of the stored scratchpad.
func (c *Client) Download(ctx context.Context, numBytes uint32) ([]byte, error) {
	var data []byte
	for off := uint32(0); off < numBytes; off += otap.MaxBlockSize {
		r, block, err := c.ReadBlock(ctx, off, otap.MaxBlockSize)
		if err != nil {
			return nil, err
		}
		if r != otap.ReadSuccess {
			return nil, fmt.Errorf("read at %d: %s", off, r)
		}
		if len(block) == 0 {
			break
		}
		data = append(data, block...)
	}
	return data, nil
}

// NextIndication waits for the next remote status indication, skipping
// other indications.
func (c *Client) NextIndication(ctx context.Context) (*RemoteStatusInd, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case f := <-c.Indications():
			if f.Func != FuncRemoteStatusInd {
				continue
			}
			var ind RemoteStatusInd
			if err := decode(f.Payload, &ind); err != nil {
				return nil, err
			}
			return &ind, nil
		}
	}
}
