package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clientTestEnv struct {
	t        *testing.T
	client   *Client
	peer     *Conn
	peerSide net.Conn
	requests chan *Frame
	errs     chan error
}

// newClientTestEnv connects a client to a peer which forwards received
// requests to env.requests. When confirm is set the peer confirms every
// request with a one byte payload.
func newClientTestEnv(t *testing.T, confirm bool) *clientTestEnv {
	a, b := net.Pipe()
	env := &clientTestEnv{
		t:        t,
		peerSide: b,
		requests: make(chan *Frame, 16),
		errs:     make(chan error, 16),
	}
	env.client = NewClient(NewConn(a))
	env.client.id = 1
	env.client.Conn().OnError = func(err error) { env.errs <- err }
	env.peer = NewConn(b)
	env.peer.Handler = HandleFrameFunc(func(ctx context.Context, f *Frame) {
		env.requests <- f
		if confirm {
			require.NoError(t, env.peer.Send(&Frame{Func: f.Func | ConfirmFlag, ID: f.ID, Payload: []byte{0}}))
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	go env.client.Run(ctx)
	go env.peer.Run(ctx)
	t.Cleanup(func() {
		cancel()
		a.Close()
		b.Close()
	})
	return env
}

func (e *clientTestEnv) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	e.t.Cleanup(cancel)
	return ctx
}

func (e *clientTestEnv) nextRequest() *Frame {
	select {
	case f := <-e.requests:
		return f
	case <-time.After(5 * time.Second):
		e.t.Fatal("no request received")
	}
	return nil
}

func TestClientCall(t *testing.T) {
	env := newClientTestEnv(t, true)
	for n := 1; n <= 3; n++ {
		cnf, err := env.client.Call(env.ctx(), &Frame{Func: 0x19, Payload: []byte{byte(n)}})
		require.NoError(t, err)
		require.Equal(t, byte(0x99), cnf.Func)
		require.Equal(t, FrameID(n), cnf.ID)
		require.Equal(t, []byte{0}, cnf.Payload)

		req := env.nextRequest()
		require.Equal(t, []byte{byte(n)}, req.Payload)
	}
}

func TestClientNoReply(t *testing.T) {
	env := newClientTestEnv(t, false)
	first := env.client.Do(&Frame{Func: 0x17})
	second := env.client.Do(&Frame{Func: 0x18})
	require.Equal(t, FrameID(1), first.ID())
	require.Equal(t, FrameID(2), second.ID())
	env.nextRequest()
	env.nextRequest()

	require.NoError(t, env.peer.Send(&Frame{Func: 0x98, ID: 2, Payload: []byte{1}}))
	_, err := first.Wait(env.ctx())
	require.Equal(t, ErrNoReply, err)
	cnf, err := second.Wait(env.ctx())
	require.NoError(t, err)
	require.Equal(t, []byte{1}, cnf.Payload)
}

func TestClientIndication(t *testing.T) {
	env := newClientTestEnv(t, false)
	req := env.client.Do(&Frame{Func: 0x1c})
	env.nextRequest()

	// Right id, wrong function: not a confirmation.
	require.NoError(t, env.peer.Send(&Frame{Func: 0x9e, ID: req.ID(), Payload: []byte{7}}))
	select {
	case ind := <-env.client.Indications():
		require.Equal(t, byte(0x9e), ind.Func)
		require.Equal(t, []byte{7}, ind.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no indication")
	}
	select {
	case <-req.ResultChan():
		t.Fatal("request resolved by an indication")
	default:
	}
}

func TestClientDropsCorruptedFrames(t *testing.T) {
	env := newClientTestEnv(t, false)
	req := env.client.Do(&Frame{Func: 0x19})
	env.nextRequest()

	cnf := Encode([]byte{0x99, byte(req.ID()), 1, 0})
	corrupted := append([]byte(nil), cnf...)
	corrupted[4] ^= 0xff
	_, err := env.peerSide.Write(corrupted)
	require.NoError(t, err)
	select {
	case err := <-env.errs:
		require.Equal(t, FrameErrCRC, err.(*FrameError).Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("corrupted frame not reported")
	}

	_, err = env.peerSide.Write(cnf)
	require.NoError(t, err)
	f, err := req.Wait(env.ctx())
	require.NoError(t, err)
	require.Equal(t, []byte{0}, f.Payload)
}
