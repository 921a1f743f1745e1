// Package node assembles a simulated mesh node: flash media, the area
// table, the scratchpad store and the OTAP service, served to the local
// application over the MSAP link and to other nodes over the mesh.
package node

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/bootloader"
	"github.com/robotalks/meshota/pkg/flash"
	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/link"
	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/msap"
	"github.com/robotalks/meshota/pkg/otap"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

// Node is a simulated mesh node.
type Node struct {
	Config   *Config
	Loop     *fx.Loop
	Internal *flash.Medium
	External *flash.Medium
	Table    *area.Table
	Store    *scratchpad.Store
	Service  *otap.Service
	Server   *msap.Server
	// Mesh is nil when the node is not connected to a mesh.
	Mesh *mesh.Conn

	firmware  area.Version
	locks     otap.Locks
	lockedCfg bool
	record    Record
	persist   *persister
	links     *linkMux
	runners   []fx.Runnable
	closers   []io.Closer
}

type rebootMsg struct{}

// NewMessage implements Message.
func (m *rebootMsg) NewMessage() fx.Message { return &rebootMsg{} }

// New creates a Node from config. Boot must run before the loop.
func New(conf *Config) (*Node, error) {
	if conf.Address == mesh.Unspecified || conf.Address.IsBroadcast() {
		return nil, fmt.Errorf("invalid node address %s", conf.Address)
	}
	role, err := otap.ParseRole(conf.Role)
	if err != nil {
		return nil, err
	}
	fw, err := area.ParseVersion(conf.Firmware)
	if err != nil {
		return nil, err
	}
	locks, lockedCfg, err := conf.locks()
	if err != nil {
		return nil, err
	}

	n := &Node{
		Config:    conf,
		Loop:      fx.NewLoopWithClock(fx.ClockOrSystem(conf.Clock)),
		firmware:  fw,
		locks:     locks,
		lockedCfg: lockedCfg,
	}
	succeeded := false
	defer func() {
		if !succeeded {
			n.Close()
		}
	}()

	internal, external := conf.timings()
	if n.Internal, err = n.newMedium("internal", internal); err != nil {
		return nil, err
	}
	if n.External, err = n.newMedium("external", external); err != nil {
		return nil, err
	}
	if n.Table, err = area.New(conf.areas(), n.Internal, n.External); err != nil {
		return nil, err
	}
	if n.Store, err = scratchpad.NewStore(n.Table); err != nil {
		return nil, err
	}
	n.persist = newPersister(n.Table)

	n.Service = otap.NewService(n.Store)
	n.Service.Role = role
	n.Service.Firmware = fw
	n.Service.Locks = locks
	n.Service.OnTargetChanged = n.targetChanged
	n.Service.OnStackChanged = n.stackChanged
	n.Service.OnReboot = n.requestReboot

	n.links = &linkMux{}
	n.Server = msap.NewServer(n.Service, n.links)
	n.Server.RemoteTimeout = conf.RemoteTimeout
	n.links.handler = n.Server

	if conf.MeshURL != "" {
		rw, closer, err := DialMesh(conf.MeshURL, conf.Address)
		if err != nil {
			return nil, fmt.Errorf("connect mesh: %v", err)
		}
		n.closers = append(n.closers, closer)
		n.AttachMesh(rw)
	}
	if conf.Listen != "" {
		ln, err := net.Listen("tcp", conf.Listen)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, ln)
		n.runners = append(n.runners, &listenRunner{mux: n.links, ln: ln})
		glog.Infof("node %s: MSAP link on %s", conf.Address, ln.Addr())
	}
	if conf.Serial != "" {
		port, err := link.OpenSerial(conf.Serial, conf.Baud)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, port)
		n.runners = append(n.runners, &serialRunner{mux: n.links, port: port})
	}
	succeeded = true
	return n, nil
}

func (n *Node) newMedium(name string, timing flash.Timing) (*flash.Medium, error) {
	if n.Config.DataDir == "" {
		return flash.NewMedium(name, timing, flash.NewMemoryStorage(timing.FlashSize), n.Loop.Clock)
	}
	storage, err := flash.OpenFileStorage(filepath.Join(n.Config.DataDir, name+".bin"), timing.FlashSize)
	if err != nil {
		return nil, err
	}
	n.closers = append(n.closers, storage)
	return flash.NewMedium(name, timing, storage, n.Loop.Clock)
}

// AttachMesh connects the node to the mesh through rw. It must be
// called before AddToLoop.
func (n *Node) AttachMesh(rw mesh.PacketReadWriter) {
	n.Mesh = mesh.NewConn(rw, n.Config.Address)
	n.Server.Remote = &otap.RemoteStatus{Conn: n.Mesh, Locks: &n.Service.Locks}
}

// Addr is the address of the MSAP listener, nil without one.
func (n *Node) Addr() net.Addr {
	for _, r := range n.runners {
		if l, ok := r.(*listenRunner); ok {
			return l.ln.Addr()
		}
	}
	return nil
}

// Firmware is the version of the running stack.
func (n *Node) Firmware() area.Version {
	return n.Service.Firmware
}

// Boots counts the boots recorded in the persistent area.
func (n *Node) Boots() uint32 {
	return n.record.Boots
}

// AddToLoop implements LoopAdder.
func (n *Node) AddToLoop(l *fx.Loop) {
	l.Add(n.Internal, n.External, n.Service, n.Server)
	if n.Mesh != nil {
		l.Add(n.Mesh, &otap.Responder{Service: n.Service, Queued: n.Server.Queued})
		l.Add(&mesh.UnsupportedCommands{})
	}
	l.AddController(fx.PrLvIdle, fx.ControlFunc(n.idle))
	l.AddRunnable(n.runners...)
}

// Boot runs the bootloader and restores the persisted state, like a
// node coming out of reset.
func (n *Node) Boot(ctx context.Context) error {
	out, err := bootloader.Process(ctx, n.Table)
	if err != nil {
		return fmt.Errorf("bootloader: %v", err)
	}
	if out.Processed {
		glog.Infof("node %s: scratchpad processed with status %d", n.Config.Address, out.Status)
	}
	if err = n.loadFirmware(ctx); err != nil {
		return err
	}
	n.Store.Reset()
	if err = area.Run(ctx, n.Table, n.Store.AreaID(), func(done flash.Callback) error {
		return n.Store.Load(done)
	}); err != nil {
		glog.Warningf("node %s: scratchpad: %v", n.Config.Address, err)
	}

	n.record = Record{}
	if n.persist != nil {
		if n.record, err = n.persist.load(ctx); err != nil {
			glog.Warningf("node %s: %v", n.Config.Address, err)
			n.record = Record{}
		}
	}
	n.record.Boots++
	if n.lockedCfg || n.record.Locks == nil {
		locks := n.locks
		n.record.Locks = &locks
	}
	n.Service.Locks = *n.record.Locks
	n.Service.Restore(n.record.Target, n.record.StackStarted)
	n.save(ctx)
	glog.Infof("node %s: booted firmware %s, boot %d, stack started %v",
		n.Config.Address, n.Service.Firmware, n.record.Boots, n.record.StackStarted)
	return nil
}

func (n *Node) loadFirmware(ctx context.Context) error {
	n.Service.Firmware = n.firmware
	stack, ok := n.Table.FindType(area.TypeStack)
	if !ok || !stack.HasHeader {
		return nil
	}
	var h area.Header
	if err := area.Run(ctx, n.Table, stack.ID, func(done flash.Callback) error {
		return n.Table.StartReadHeader(stack.ID, func(hdr area.Header, err error) {
			h = hdr
			done(err)
		})
	}); err != nil {
		return fmt.Errorf("read stack header: %v", err)
	}
	if !h.IsBlank() {
		n.Service.Firmware = h.Version
	}
	return nil
}

// Run boots the node and runs the loop until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Boot(ctx); err != nil {
		return err
	}
	n.Loop.Add(n)
	return n.Loop.Run(ctx)
}

// Close releases files and connections.
func (n *Node) Close() error {
	errs := &fx.AggregatedError{}
	for i := len(n.closers) - 1; i >= 0; i-- {
		errs.Add(n.closers[i].Close())
	}
	n.closers = nil
	return errs.Aggregate()
}

func (n *Node) targetChanged(t otap.Target) {
	n.record.Target = t
	n.markDirty()
}

func (n *Node) stackChanged(started bool) {
	n.record.StackStarted = started
	n.markDirty()
}

func (n *Node) markDirty() {
	if n.persist != nil {
		n.persist.dirty = true
	}
}

func (n *Node) requestReboot() {
	n.Loop.PostMessage(&rebootMsg{})
	n.Loop.TriggerNext()
}

// idle persists changed state and reboots when requested. Both wait for
// the store so they never interleave with a scratchpad operation.
func (n *Node) idle(cc fx.ControlContext) error {
	reboot := false
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if _, ok := mctx.CurrentMessage().(*rebootMsg); ok {
			mctx.MessageTaken()
			reboot = true
		}
	}))
	ctx := cc.Context()
	if reboot {
		n.save(ctx)
		glog.Infof("node %s: rebooting", n.Config.Address)
		return n.Boot(ctx)
	}
	if n.persist != nil && n.persist.dirty && !n.Store.IsBusy() && !n.Table.IsBusy(n.persist.info.ID) {
		n.save(ctx)
	}
	return nil
}

func (n *Node) save(ctx context.Context) {
	if n.persist == nil {
		return
	}
	n.persist.dirty = false
	if err := n.persist.save(ctx, &n.record); err != nil {
		glog.Errorf("node %s: %v", n.Config.Address, err)
	}
}
