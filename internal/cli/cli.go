// Package cli implements the sysvipc subcommands.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/richinsley/sysvipc"
	"github.com/richinsley/sysvipc/internal/config"
)

// Env is passed to every subcommand as the first Execute argument.
type Env struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Options  []sysvipc.Option
	Stdout   io.Writer
	Stdin    io.Reader
}

func (e *Env) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Env) stdin() io.Reader {
	if e.Stdin == nil {
		return os.Stdin
	}
	return e.Stdin
}

// ForEachCmd calls cb with every subcommand and its group.
func ForEachCmd(cb func(cmd subcommands.Command, group string)) {
	const msgGroup = "message queues"
	cb(new(MsgSend), msgGroup)
	cb(new(MsgRecv), msgGroup)

	const semGroup = "semaphores"
	cb(new(SemGet), semGroup)
	cb(new(SemSet), semGroup)
	cb(new(SemOp), semGroup)

	const shmGroup = "shared memory"
	cb(new(ShmRead), shmGroup)
	cb(new(ShmWrite), shmGroup)

	const objGroup = "objects"
	cb(new(Stat), objGroup)
	cb(new(Remove), objGroup)
}

// envFrom extracts the Env passed to Execute.
func envFrom(args []interface{}) *Env {
	if len(args) > 0 {
		if env, ok := args[0].(*Env); ok && env != nil {
			return env
		}
	}
	return &Env{Config: config.Default(), Logger: zap.NewNop()}
}

// failf reports a command failure and returns ExitFailure.
func failf(env *Env, format string, args ...interface{}) subcommands.ExitStatus {
	msg := fmt.Sprintf(format, args...)
	env.Logger.Debug("command failed", zap.String("error", msg))
	fmt.Fprintf(os.Stderr, "sysvipc: %s\n", msg)
	return subcommands.ExitFailure
}

// usage prints the command usage and returns ExitUsageError.
func usage(f *flag.FlagSet) subcommands.ExitStatus {
	f.Usage()
	return subcommands.ExitUsageError
}

// createFlags holds the flags shared by commands that may create an object.
type createFlags struct {
	create    bool
	exclusive bool
	mode      string
}

func (c *createFlags) setFlags(f *flag.FlagSet) {
	f.BoolVar(&c.create, "create", false, "create the object if it does not exist")
	f.BoolVar(&c.exclusive, "excl", false, "with -create, fail if the object already exists")
	f.StringVar(&c.mode, "mode", "0600", "octal permission bits for a created object")
}

func (c *createFlags) flags() (sysvipc.CreateFlag, error) {
	mode, err := parseMode(c.mode)
	if err != nil {
		return 0, err
	}
	flags := sysvipc.CreateFlag(mode)
	if c.create {
		flags |= sysvipc.Create
	}
	if c.exclusive {
		if !c.create {
			return 0, fmt.Errorf("-excl requires -create")
		}
		flags |= sysvipc.Exclusive
	}
	return flags, nil
}

// parseKey parses a key written in decimal or as 0x-prefixed hex. Hex keys
// cover the full 32 bits, as printed by ipcs(1). "private" selects
// IPC_PRIVATE.
func parseKey(s string) (sysvipc.Key, error) {
	if s == "private" {
		return sysvipc.IPCPrivate, nil
	}
	if rest, ok := cutHexPrefix(s); ok {
		v, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid key %q: %w", s, err)
		}
		return sysvipc.Key(int32(uint32(v))), nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return sysvipc.Key(v), nil
}

func cutHexPrefix(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		return rest, true
	}
	return strings.CutPrefix(s, "0X")
}

// parseMode parses octal permission bits such as "0600" or "644".
func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", s, err)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("invalid mode %q: only permission bits are allowed", s)
	}
	return os.FileMode(v), nil
}

// parseKind parses the object kind accepted by -kind.
func parseKind(s string) (sysvipc.Kind, error) {
	switch strings.ToLower(s) {
	case "msg", "queue", "msgqueue":
		return sysvipc.KindMessageQueue, nil
	case "sem", "semaphore", "semset":
		return sysvipc.KindSemaphoreSet, nil
	case "shm", "segment", "sharedmemory":
		return sysvipc.KindSharedMemory, nil
	}
	return 0, fmt.Errorf("invalid kind %q: want msg, sem or shm", s)
}

// parseOperation parses a semaphore operation written as index:delta, for
// example "2:-1".
func parseOperation(s string, flags sysvipc.SemFlag) (sysvipc.SemaphoreOperation, error) {
	index, delta, ok := strings.Cut(s, ":")
	if !ok {
		return sysvipc.SemaphoreOperation{}, fmt.Errorf("invalid operation %q: want index:delta", s)
	}
	i, err := strconv.ParseUint(index, 10, 16)
	if err != nil {
		return sysvipc.SemaphoreOperation{}, fmt.Errorf("invalid operation %q: bad index: %w", s, err)
	}
	d, err := strconv.ParseInt(delta, 10, 16)
	if err != nil {
		return sysvipc.SemaphoreOperation{}, fmt.Errorf("invalid operation %q: bad delta: %w", s, err)
	}
	return sysvipc.SemaphoreOperation{Index: uint16(i), Delta: int16(d), Flags: flags}, nil
}

// parseValues parses semaphore values.
func parseValues(args []string) ([]uint16, error) {
	values := make([]uint16, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid semaphore value %q: %w", arg, err)
		}
		values = append(values, uint16(v))
	}
	return values, nil
}

// payload returns the message argument, or stdin when it is "-".
func payload(env *Env, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(env.stdin())
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}

// handle is the part of every facility type that stat and rm need.
type handle interface {
	Remove() error
	Permissions() (sysvipc.PermissionView, error)
	ID() int
}

// openExisting opens the object of kind at key without creating it.
// stats returns the facility-specific statistics.
func openExisting(env *Env, kind sysvipc.Kind, key sysvipc.Key) (h handle, stats func() (interface{}, error), err error) {
	switch kind {
	case sysvipc.KindMessageQueue:
		q, err := sysvipc.OpenMessageQueue(key, 0, env.Options...)
		if err != nil {
			return nil, nil, err
		}
		return q, func() (interface{}, error) { return q.Stats() }, nil
	case sysvipc.KindSemaphoreSet:
		s, err := sysvipc.OpenSemaphoreSet(key, 0, 0, env.Options...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() (interface{}, error) { return s.Stats() }, nil
	case sysvipc.KindSharedMemory:
		s, err := sysvipc.OpenSharedMemory(key, 0, 0, env.Options...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() (interface{}, error) { return s.Stats() }, nil
	}
	return nil, nil, fmt.Errorf("unknown kind %v", kind)
}
