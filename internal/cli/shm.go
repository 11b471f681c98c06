package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/richinsley/sysvipc"
)

// ShmRead implements subcommands.Command for the "shmread" command.
type ShmRead struct {
	offset int
	length int
}

// Name implements subcommands.Command.Name.
func (*ShmRead) Name() string {
	return "shmread"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*ShmRead) Synopsis() string {
	return "copy bytes out of a shared memory segment"
}

// Usage implements subcommands.Command.Usage.
func (*ShmRead) Usage() string {
	return `shmread [flags] <key>

Attaches the segment at key read-only and writes its contents to stdout.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *ShmRead) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.offset, "offset", 0, "byte offset to start reading at")
	f.IntVar(&s.length, "length", 0, "number of bytes to read, 0 reads to the end of the segment")
}

// Execute implements subcommands.Command.Execute.
func (s *ShmRead) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage(f)
	}
	env := envFrom(args)

	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	seg, err := sysvipc.OpenSharedMemory(key, 0, 0, env.Options...)
	if err != nil {
		return failf(env, "opening segment %#x: %v", uint32(key), err)
	}
	if err := seg.Attach(sysvipc.AttachReadOnly); err != nil {
		return failf(env, "attaching segment %#x: %v", uint32(key), err)
	}
	defer seg.Detach()

	length := s.length
	if length == 0 {
		size, err := seg.Size()
		if err != nil {
			return failf(env, "sizing segment %#x: %v", uint32(key), err)
		}
		length = size - s.offset
	}
	data, err := seg.Read(length, s.offset)
	if err != nil {
		return failf(env, "reading segment %#x: %v", uint32(key), err)
	}
	if _, err := env.stdout().Write(data); err != nil {
		return failf(env, "writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// ShmWrite implements subcommands.Command for the "shmwrite" command.
type ShmWrite struct {
	createFlags
	offset int
	size   int
}

// Name implements subcommands.Command.Name.
func (*ShmWrite) Name() string {
	return "shmwrite"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*ShmWrite) Synopsis() string {
	return "copy bytes into a shared memory segment"
}

// Usage implements subcommands.Command.Usage.
func (*ShmWrite) Usage() string {
	return `shmwrite [flags] <key> <data|->

Writes data, or stdin when the data is "-", into the segment at key.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *ShmWrite) SetFlags(f *flag.FlagSet) {
	s.createFlags.setFlags(f)
	f.IntVar(&s.offset, "offset", 0, "byte offset to start writing at")
	f.IntVar(&s.size, "size", 4096, "segment size in bytes when creating")
}

// Execute implements subcommands.Command.Execute.
func (s *ShmWrite) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
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
	data, err := payload(env, f.Arg(1))
	if err != nil {
		return failf(env, "%v", err)
	}

	size := 0
	if flags&sysvipc.Create != 0 {
		size = s.size
	}
	seg, err := sysvipc.OpenSharedMemory(key, size, flags, env.Options...)
	if err != nil {
		return failf(env, "opening segment %#x: %v", uint32(key), err)
	}
	if err := seg.Attach(0); err != nil {
		return failf(env, "attaching segment %#x: %v", uint32(key), err)
	}
	defer seg.Detach()

	if err := seg.Write(data, s.offset); err != nil {
		return failf(env, "writing segment %#x: %v", uint32(key), err)
	}
	return subcommands.ExitSuccess
}
