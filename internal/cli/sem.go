package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/richinsley/sysvipc"
)

// SemGet implements subcommands.Command for the "semget" command.
type SemGet struct {
	createFlags
}

// Name implements subcommands.Command.Name.
func (*SemGet) Name() string {
	return "semget"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*SemGet) Synopsis() string {
	return "open or create a semaphore set and print its values"
}

// Usage implements subcommands.Command.Usage.
func (*SemGet) Usage() string {
	return `semget [flags] <key> [count]

Opens the semaphore set at key, creating count semaphores with -create, and
prints its identifier followed by every value.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *SemGet) SetFlags(f *flag.FlagSet) {
	s.createFlags.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (s *SemGet) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		return usage(f)
	}
	env := envFrom(args)

	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	flags, err := s.createFlags.flags()
	if err != nil {
		return failf(env, "%v", err)
	}
	count := 0
	if f.NArg() == 2 {
		if _, err := fmt.Sscan(f.Arg(1), &count); err != nil || count < 0 {
			return failf(env, "invalid count %q", f.Arg(1))
		}
	}

	set, err := sysvipc.OpenSemaphoreSet(key, count, flags, env.Options...)
	if err != nil {
		return failf(env, "opening semaphore set %#x: %v", uint32(key), err)
	}
	values, err := set.Values()
	if err != nil {
		return failf(env, "reading semaphore set %#x: %v", uint32(key), err)
	}
	fmt.Fprintf(env.stdout(), "%d\t%s\n", set.ID(), formatValues(values))
	return subcommands.ExitSuccess
}

// SemSet implements subcommands.Command for the "semset" command.
type SemSet struct {
	index int
}

// Name implements subcommands.Command.Name.
func (*SemSet) Name() string {
	return "semset"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*SemSet) Synopsis() string {
	return "set semaphore values"
}

// Usage implements subcommands.Command.Usage.
func (*SemSet) Usage() string {
	return `semset [flags] <key> <value>...

Sets every semaphore of the set at key, one value per semaphore. With -index
a single value sets only that semaphore.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *SemSet) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.index, "index", -1, "set only the semaphore at this index")
}

// Execute implements subcommands.Command.Execute.
func (s *SemSet) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return usage(f)
	}
	env := envFrom(args)

	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	values, err := parseValues(f.Args()[1:])
	if err != nil {
		return failf(env, "%v", err)
	}
	set, err := sysvipc.OpenSemaphoreSet(key, 0, 0, env.Options...)
	if err != nil {
		return failf(env, "opening semaphore set %#x: %v", uint32(key), err)
	}

	if s.index >= 0 {
		if len(values) != 1 {
			return failf(env, "-index takes exactly one value, got %d", len(values))
		}
		if err := set.SetValue(s.index, int(values[0])); err != nil {
			return failf(env, "setting semaphore %d: %v", s.index, err)
		}
		return subcommands.ExitSuccess
	}
	if err := set.SetValues(values); err != nil {
		return failf(env, "setting semaphore set %#x: %v", uint32(key), err)
	}
	return subcommands.ExitSuccess
}

// SemOp implements subcommands.Command for the "semop" command.
type SemOp struct {
	noWait  bool
	undo    bool
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*SemOp) Name() string {
	return "semop"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*SemOp) Synopsis() string {
	return "apply an atomic batch of semaphore operations"
}

// Usage implements subcommands.Command.Usage.
func (*SemOp) Usage() string {
	return `semop [flags] <key> <index:delta>...

Applies every operation to the set at key as one atomic batch. A negative
delta acquires, a positive delta releases and 0 waits for the value to reach
zero.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *SemOp) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.noWait, "nowait", false, "fail instead of waiting")
	f.BoolVar(&s.undo, "undo", false, "undo the operations when the process exits")
	f.DurationVar(&s.timeout, "timeout", 0, "give up waiting after this long, 0 waits forever")
}

// Execute implements subcommands.Command.Execute.
func (s *SemOp) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return usage(f)
	}
	env := envFrom(args)

	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	var flags sysvipc.SemFlag
	if s.noWait {
		flags |= sysvipc.SemNoWait
	}
	if s.undo {
		flags |= sysvipc.SemUndo
	}
	ops := make([]sysvipc.SemaphoreOperation, 0, f.NArg()-1)
	for _, arg := range f.Args()[1:] {
		op, err := parseOperation(arg, flags)
		if err != nil {
			return failf(env, "%v", err)
		}
		ops = append(ops, op)
	}

	set, err := sysvipc.OpenSemaphoreSet(key, 0, 0, env.Options...)
	if err != nil {
		return failf(env, "opening semaphore set %#x: %v", uint32(key), err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := set.Apply(ctx, ops...); err != nil {
		return failf(env, "applying %v: %v", ops, err)
	}
	return subcommands.ExitSuccess
}

func formatValues(values []uint16) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
