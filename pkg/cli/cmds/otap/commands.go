// Package otap provides shell commands for the scratchpad and target of
// a connected node.
package otap

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/meshota/pkg/cli/sh"
	"github.com/robotalks/meshota/pkg/image"
	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/msap"
	"github.com/robotalks/meshota/pkg/otap"
	"github.com/robotalks/meshota/pkg/scratchpad"
)

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseSeq(s string) (uint8, error) {
	v, err := parseUint(s, 8)
	return uint8(v), err
}

// parseTarget parses SEQ CRC ACTION [DELAY].
func parseTarget(args []string) (otap.Target, error) {
	var t otap.Target
	if len(args) < 3 || len(args) > 4 {
		return t, errUsage
	}
	var err error
	if t.Sequence, err = parseSeq(args[0]); err != nil {
		return t, err
	}
	crc, err := parseUint(args[1], 16)
	if err != nil {
		return t, err
	}
	t.CRC = uint16(crc)
	if t.Action, err = otap.ParseAction(args[2]); err != nil {
		return t, err
	}
	if len(args) > 3 {
		d, err := otap.ParseDelay(args[3])
		if err != nil {
			return t, err
		}
		t.Param = uint8(d)
	}
	return t, nil
}

// parseUpload parses FILE SEQ.
func parseUpload(args []string) (string, uint8, error) {
	if len(args) != 2 {
		return "", 0, errUsage
	}
	seq, err := parseSeq(args[1])
	if err != nil {
		return "", 0, err
	}
	return args[0], seq, nil
}

// parseRead parses OFFSET [N].
func parseRead(args []string) (uint32, uint8, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, 0, errUsage
	}
	off, err := parseUint(args[0], 32)
	if err != nil {
		return 0, 0, err
	}
	n := uint64(otap.MaxBlockSize)
	if len(args) > 1 {
		if n, err = parseUint(args[1], 8); err != nil {
			return 0, 0, err
		}
	}
	return uint32(off), uint8(n), nil
}

// parseRemoteStatus parses ADDR [WAIT].
func parseRemoteStatus(args []string, wait time.Duration) (mesh.Address, time.Duration, error) {
	if len(args) < 1 || len(args) > 2 {
		return mesh.Unspecified, 0, errUsage
	}
	addr, err := mesh.ParseAddress(args[0])
	if err != nil {
		return mesh.Unspecified, 0, err
	}
	if len(args) > 1 {
		if wait, err = time.ParseDuration(args[1]); err != nil {
			return mesh.Unspecified, 0, err
		}
	}
	return addr, wait, nil
}

type remoteUpdateArgs struct {
	addr  mesh.Address
	seq   uint8
	delay time.Duration
}

// parseRemoteUpdate parses ADDR SEQ DELAY.
func parseRemoteUpdate(args []string) (a remoteUpdateArgs, err error) {
	if len(args) != 3 {
		return a, errUsage
	}
	if a.addr, err = mesh.ParseAddress(args[0]); err != nil {
		return a, err
	}
	if a.seq, err = parseSeq(args[1]); err != nil {
		return a, err
	}
	if a.delay, err = time.ParseDuration(args[2]); err != nil {
		return a, err
	}
	if a.delay < 0 {
		return a, fmt.Errorf("negative delay %s", a.delay)
	}
	return a, nil
}

var errUsage = errors.New("wrong number of arguments")

// argsErr reports a parse failure, with the usage for errUsage.
func argsErr(c *ishell.Context, err error) {
	if err == errUsage {
		err = fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help)
	}
	c.Err(err)
}

func expectArgs(c *ishell.Context, min, max int) bool {
	if len(c.Args) < min || len(c.Args) > max {
		c.Err(fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help))
		return false
	}
	return true
}

// result prints a result code; non-success is reported as an error.
func result(c *ishell.Context, r fmt.Stringer, ok bool, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	if !ok {
		c.Err(fmt.Errorf("%s", r))
		return
	}
	sh.Output(c, map[string]string{"result": r.String()}, r.String())
}

func statusText(st *msap.ScratchpadStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "stored:    %d bytes crc=0x%04x seq=%d type=%s status=0x%02x\n",
		st.NumBytes, st.CRC, st.Seq, scratchpad.StoredType(st.Type), st.Status)
	fmt.Fprintf(&b, "processed: %d bytes crc=0x%04x seq=%d area=0x%08x\n",
		st.ProcessedNumBytes, st.ProcessedCRC, st.ProcessedSeq, st.AreaID)
	fmt.Fprintf(&b, "firmware:  %s", st.Firmware())
	return b.String()
}

func indicationText(ind *msap.RemoteStatusInd) string {
	r := otap.RemoteResult(ind.Result)
	if r != otap.RemoteSuccess {
		return fmt.Sprintf("%s: %s", mesh.Address(ind.Source), r)
	}
	return fmt.Sprintf("%s: hops=%d travel=%dms queued=%d update_in=%ds\n%s",
		mesh.Address(ind.Source), ind.HopCount, ind.TravelTimeMs, ind.Queued,
		ind.UpdateTimeoutS, statusText(&ind.ScratchpadStatus))
}

// collect prints remote status indications until the expected ones
// arrived or wait expires.
func collect(c *ishell.Context, target mesh.Address, wait time.Duration) {
	ctx, cancel := context.WithTimeout(sh.ShellFrom(c).Conn.Ctx, wait)
	defer cancel()
	for {
		ind, err := sh.Client(c).NextIndication(ctx)
		if err == context.DeadlineExceeded {
			return
		}
		if err != nil {
			c.Err(err)
			return
		}
		sh.Output(c, ind, indicationText(ind))
		if !target.IsBroadcast() && mesh.Address(ind.Source) == target {
			return
		}
	}
}

func loadImage(fn string) ([]byte, *image.Image, error) {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, nil, err
	}
	img, err := image.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v", fn, err)
	}
	return data, img, nil
}

var (
	// StatusCmd reads the scratchpad status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ctx, cancel := sh.RequestContext(c)
			defer cancel()
			st, err := sh.Client(c).Status(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, st, statusText(st))
		}),
	}

	// UploadCmd transfers an image file into the scratchpad.
	UploadCmd = ishell.Cmd{
		Name:    "upload",
		Aliases: []string{"up"},
		Help:    "FILE SEQ",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			fn, seq, err := parseUpload(c.Args)
			if err != nil {
				argsErr(c, err)
				return
			}
			data, _, err := loadImage(fn)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			var progress func(sent, total int)
			if s.Interactive && !s.OutputJSON {
				bar := c.ProgressBar()
				bar.Start()
				defer bar.Stop()
				progress = func(sent, total int) {
					bar.Suffix(fmt.Sprintf(" %d/%d", sent, total))
					bar.Progress(sent * 100 / total)
				}
			}
			if err := sh.Client(c).Upload(s.Conn.Ctx, data, seq, progress); err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, map[string]interface{}{"bytes": len(data), "seq": seq},
				fmt.Sprintf("uploaded %d bytes seq=%d digest=%s", len(data), seq, image.DigestOf(data).Short()))
		}),
	}

	// DownloadCmd reads the stored scratchpad into a file.
	DownloadCmd = ishell.Cmd{
		Name:    "download",
		Aliases: []string{"dl"},
		Help:    "FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if !expectArgs(c, 1, 1) {
				return
			}
			ctx, cancel := sh.RequestContext(c)
			st, err := sh.Client(c).Status(ctx)
			cancel()
			if err != nil {
				c.Err(err)
				return
			}
			data, err := sh.Client(c).Download(sh.ShellFrom(c).Conn.Ctx, st.NumBytes)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ioutil.WriteFile(c.Args[0], data, 0644); err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, map[string]interface{}{"bytes": len(data)},
				fmt.Sprintf("downloaded %d bytes digest=%s", len(data), image.DigestOf(data).Short()))
		}),
	}

	// ReadCmd reads one block of the stored scratchpad.
	ReadCmd = ishell.Cmd{
		Name: "read",
		Help: "OFFSET [N]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			off, n, err := parseRead(c.Args)
			if err != nil {
				argsErr(c, err)
				return
			}
			ctx, cancel := sh.RequestContext(c)
			defer cancel()
			r, data, err := sh.Client(c).ReadBlock(ctx, off, n)
			if err != nil {
				c.Err(err)
				return
			}
			if r != otap.ReadSuccess {
				c.Err(fmt.Errorf("%s", r))
				return
			}
			sh.Output(c, map[string]interface{}{"offset": off, "data": data},
				fmt.Sprintf("%08x: % x", off, data))
		}),
	}

	// ClearCmd erases the scratchpad.
	ClearCmd = ishell.Cmd{
		Name: "clear",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ctx, cancel := sh.RequestContext(c)
			defer cancel()
			r, err := sh.Client(c).Clear(ctx)
			result(c, r, r == otap.ClearSuccess, err)
		}),
	}

	// BootableCmd marks the stored scratchpad for processing.
	BootableCmd = ishell.Cmd{
		Name: "bootable",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ctx, cancel := sh.RequestContext(c)
			defer cancel()
			r, err := sh.Client(c).Bootable(ctx)
			result(c, r, r == otap.BootableSuccess, err)
		}),
	}

	// TargetCmd reads or writes the target scratchpad.
	TargetCmd = ishell.Cmd{
		Name:    "target",
		Aliases: []string{"tg"},
		Help:    "[SEQ CRC ACTION [DELAY]]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ctx, cancel := sh.RequestContext(c)
			defer cancel()
			if len(c.Args) == 0 {
				t, err := sh.Client(c).ReadTarget(ctx)
				if err != nil {
					c.Err(err)
					return
				}
				sh.Output(c, t, t.String())
				return
			}
			t, err := parseTarget(c.Args)
			if err != nil {
				argsErr(c, err)
				return
			}
			r, err := sh.Client(c).WriteTarget(ctx, t)
			result(c, r, r == otap.TargetSuccess, err)
		}),
	}

	// StackCmd starts or stops the stack.
	StackCmd = ishell.Cmd{
		Name: "stack",
		Help: "start|stop",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if !expectArgs(c, 1, 1) {
				return
			}
			ctx, cancel := sh.RequestContext(c)
			defer cancel()
			var r otap.StackResult
			var err error
			switch c.Args[0] {
			case "start":
				r, err = sh.Client(c).StackStart(ctx)
			case "stop":
				r, err = sh.Client(c).StackStop(ctx)
			default:
				c.Err(fmt.Errorf("usage: stack %s", c.Cmd.Help))
				return
			}
			result(c, r, r == otap.StackSuccess, err)
		}),
	}

	// RemoteStatusCmd queries nodes on the mesh and prints their
	// snapshots.
	RemoteStatusCmd = ishell.Cmd{
		Name:    "remote-status",
		Aliases: []string{"rs"},
		Help:    "ADDR [WAIT]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			target, wait, err := parseRemoteStatus(c.Args, sh.ShellFrom(c).Timeout)
			if err != nil {
				argsErr(c, err)
				return
			}
			ctx, cancel := sh.RequestContext(c)
			r, err := sh.Client(c).RemoteStatus(ctx, target)
			cancel()
			if err != nil || r != otap.RemoteSuccess {
				result(c, r, false, err)
				return
			}
			collect(c, target, wait)
		}),
	}

	// RemoteUpdateCmd asks a node to install its stored scratchpad.
	RemoteUpdateCmd = ishell.Cmd{
		Name:    "remote-update",
		Aliases: []string{"ru"},
		Help:    "ADDR SEQ DELAY",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			args, err := parseRemoteUpdate(c.Args)
			if err != nil {
				argsErr(c, err)
				return
			}
			ctx, cancel := sh.RequestContext(c)
			r, err := sh.Client(c).RemoteUpdate(ctx, args.addr, args.seq, args.delay)
			cancel()
			if err != nil || r != otap.RemoteSuccess {
				result(c, r, false, err)
				return
			}
			collect(c, args.addr, sh.ShellFrom(c).Timeout)
		}),
	}

	// InfoCmd prints the content of an image file.
	InfoCmd = ishell.Cmd{
		Name: "info",
		Help: "FILE",
		Func: func(c *ishell.Context) {
			if !expectArgs(c, 1, 1) {
				return
			}
			data, img, err := loadImage(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d bytes crc=0x%04x authenticated=%v digest=%s\n",
				len(data), img.Header.CRC, img.IsAuthenticated(), image.DigestOf(data))
			for _, e := range img.Entries {
				fmt.Fprintf(&b, "  area %s version %s compressed %d bytes\n", e.AreaID, e.Version, len(e.Compressed))
			}
			sh.Output(c, img, strings.TrimSuffix(b.String(), "\n"))
		},
	}
)

func init() {
	sh.AddCmds(
		&StatusCmd,
		&UploadCmd,
		&DownloadCmd,
		&ReadCmd,
		&ClearCmd,
		&BootableCmd,
		&TargetCmd,
		&StackCmd,
		&RemoteStatusCmd,
		&RemoteUpdateCmd,
		&InfoCmd,
	)
}
