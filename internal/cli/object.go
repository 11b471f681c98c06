package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/richinsley/sysvipc"
)

// Stat implements subcommands.Command for the "stat" command.
type Stat struct {
	kind string
}

// Name implements subcommands.Command.Name.
func (*Stat) Name() string {
	return "stat"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stat) Synopsis() string {
	return "print the kernel statistics of an IPC object"
}

// Usage implements subcommands.Command.Usage.
func (*Stat) Usage() string {
	return `stat -kind <msg|sem|shm> <key>
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stat) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.kind, "kind", "", "object kind: msg, sem or shm")
}

// Execute implements subcommands.Command.Execute.
func (s *Stat) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || s.kind == "" {
		return usage(f)
	}
	env := envFrom(args)

	kind, err := parseKind(s.kind)
	if err != nil {
		return failf(env, "%v", err)
	}
	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	h, stats, err := openExisting(env, kind, key)
	if err != nil {
		return failf(env, "opening %v %#x: %v", kind, uint32(key), err)
	}
	st, err := stats()
	if err != nil {
		return failf(env, "stat %v %#x: %v", kind, uint32(key), err)
	}
	if err := printStats(env.stdout(), kind, h.ID(), st); err != nil {
		return failf(env, "writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// Remove implements subcommands.Command for the "rm" command.
type Remove struct {
	kind string
}

// Name implements subcommands.Command.Name.
func (*Remove) Name() string {
	return "rm"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Remove) Synopsis() string {
	return "remove an IPC object from the system"
}

// Usage implements subcommands.Command.Usage.
func (*Remove) Usage() string {
	return `rm -kind <msg|sem|shm> <key>...
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Remove) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.kind, "kind", "", "object kind: msg, sem or shm")
}

// Execute implements subcommands.Command.Execute.
func (r *Remove) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || r.kind == "" {
		return usage(f)
	}
	env := envFrom(args)

	kind, err := parseKind(r.kind)
	if err != nil {
		return failf(env, "%v", err)
	}
	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		key, err := parseKey(arg)
		if err != nil {
			status = failf(env, "%v", err)
			continue
		}
		h, _, err := openExisting(env, kind, key)
		if err != nil {
			status = failf(env, "opening %v %#x: %v", kind, uint32(key), err)
			continue
		}
		if err := h.Remove(); err != nil {
			status = failf(env, "removing %v %#x: %v", kind, uint32(key), err)
		}
	}
	return status
}

func printStats(w io.Writer, kind sysvipc.Kind, id int, stats interface{}) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	row := func(name string, value interface{}) {
		if t, ok := value.(time.Time); ok {
			if t.IsZero() {
				value = "never"
			} else {
				value = t.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(tw, "%s:\t%v\n", name, value)
	}
	perm := func(p sysvipc.PermissionView) {
		row("kind", kind)
		row("id", id)
		row("key", fmt.Sprintf("%#x", uint32(p.Key)))
		row("owner", fmt.Sprintf("%d:%d", p.OwnerUID, p.OwnerGID))
		row("creator", fmt.Sprintf("%d:%d", p.CreatorUID, p.CreatorGID))
		row("mode", p.Perm())
	}

	switch st := stats.(type) {
	case sysvipc.QueueStats:
		perm(st.Perm)
		row("messages", st.Messages)
		row("bytes", st.Bytes)
		row("max bytes", st.MaxBytes)
		row("last send pid", st.LastSendPID)
		row("last receive pid", st.LastReceivePID)
		row("send time", st.SendTime)
		row("receive time", st.ReceiveTime)
		row("change time", st.ChangeTime)
	case sysvipc.SemaphoreSetStats:
		perm(st.Perm)
		row("semaphores", st.Count)
		row("op time", st.OpTime)
		row("change time", st.ChangeTime)
	case sysvipc.SegmentStats:
		perm(st.Perm)
		row("size", st.Size)
		row("attaches", st.Attaches)
		row("creator pid", st.CreatorPID)
		row("last pid", st.LastPID)
		row("attach time", st.AttachTime)
		row("detach time", st.DetachTime)
		row("change time", st.ChangeTime)
	default:
		return fmt.Errorf("unexpected stats type %T", stats)
	}
	return tw.Flush()
}
