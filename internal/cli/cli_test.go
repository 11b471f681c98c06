package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"syscall"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinsley/sysvipc"
	"github.com/richinsley/sysvipc/internal/config"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		input   string
		want    sysvipc.Key
		wantErr bool
	}{
		{"0", 0, false},
		{"1234", 1234, false},
		{"-5", -5, false},
		{"0x10", 16, false},
		{"0XfF", 255, false},
		{"0xdeadbeef", sysvipc.Key(-559038737), false},
		{"private", sysvipc.IPCPrivate, false},
		{"0x", 0, true},
		{"0x1ffffffff", 0, true},
		{"ten", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	mode, err := parseMode("0640")
	require.NoError(t, err)
	assert.Equal(t, 0o640, int(mode))

	_, err = parseMode("0999")
	assert.Error(t, err)
	_, err = parseMode("01777")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]sysvipc.Kind{
		"msg": sysvipc.KindMessageQueue,
		"SEM": sysvipc.KindSemaphoreSet,
		"shm": sysvipc.KindSharedMemory,
	} {
		got, err := parseKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := parseKind("pipe")
	assert.Error(t, err)
}

func TestParseOperation(t *testing.T) {
	op, err := parseOperation("2:-1", sysvipc.SemUndo)
	require.NoError(t, err)
	assert.Equal(t, sysvipc.SemaphoreOperation{Index: 2, Delta: -1, Flags: sysvipc.SemUndo}, op)

	for _, bad := range []string{"2", "x:1", "1:y", "-1:1", "1:40000"} {
		_, err := parseOperation(bad, 0)
		assert.Error(t, err, bad)
	}
}

func TestParseValues(t *testing.T) {
	values, err := parseValues([]string{"0", "1", "65535"})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 65535}, values)

	_, err = parseValues([]string{"1", "65536"})
	assert.Error(t, err)
}

func TestCreateFlags(t *testing.T) {
	c := createFlags{create: true, exclusive: true, mode: "0660"}
	flags, err := c.flags()
	require.NoError(t, err)
	assert.Equal(t, sysvipc.Create|sysvipc.Exclusive|0o660, flags)

	c = createFlags{exclusive: true, mode: "0600"}
	_, err = c.flags()
	assert.Error(t, err, "-excl without -create")
}

func TestPayloadFromStdin(t *testing.T) {
	env := &Env{Stdin: strings.NewReader("from stdin")}
	data, err := payload(env, "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(data))

	data, err = payload(env, "literal")
	require.NoError(t, err)
	assert.Equal(t, "literal", string(data))
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	stats := sysvipc.SemaphoreSetStats{
		Perm:  sysvipc.PermissionView{Key: 0x1234, OwnerUID: 1000, OwnerGID: 100, Mode: 0o600},
		Count: 3,
	}
	require.NoError(t, printStats(&buf, sysvipc.KindSemaphoreSet, 7, stats))

	out := buf.String()
	assert.Contains(t, out, "key:")
	assert.Contains(t, out, "0x1234")
	assert.Contains(t, out, "1000:100")
	assert.Contains(t, out, "-rw-------")
	assert.Contains(t, out, "never")
	assert.Regexp(t, `semaphores:\s+3`, out)

	assert.Error(t, printStats(io.Discard, sysvipc.KindSemaphoreSet, 7, "bogus"))
}

func TestForEachCmd(t *testing.T) {
	names := map[string]bool{}
	ForEachCmd(func(cmd subcommands.Command, _ string) {
		assert.NotEmpty(t, cmd.Synopsis())
		assert.NotEmpty(t, cmd.Usage())
		names[cmd.Name()] = true
	})
	for _, want := range []string{"msgsend", "msgrecv", "semget", "semset", "semop", "shmread", "shmwrite", "stat", "rm"} {
		assert.True(t, names[want], want)
	}
}

func TestUsageErrors(t *testing.T) {
	ForEachCmd(func(cmd subcommands.Command, _ string) {
		f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		f.SetOutput(io.Discard)
		f.Usage = func() {}
		cmd.SetFlags(f)
		require.NoError(t, f.Parse(nil))

		status := cmd.Execute(context.Background(), f, testEnv(nil))
		assert.Equal(t, subcommands.ExitUsageError, status, cmd.Name())
	})
}

func testEnv(out io.Writer) *Env {
	return &Env{
		Config: config.Default(),
		Logger: zap.NewNop(),
		Stdout: out,
	}
}

// run parses args for cmd and executes it.
func run(t *testing.T, cmd subcommands.Command, env *Env, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	f.SetOutput(io.Discard)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f, env)
}

// randomKey returns a hex key unlikely to collide with other processes.
func randomKey() string {
	return fmt.Sprintf("%#x", 0x5e000000|rand.Uint32()&0xffffff)
}

func requireSysV(t *testing.T) {
	t.Helper()
	q, err := sysvipc.OpenMessageQueue(sysvipc.IPCPrivate, sysvipc.Create|0o600)
	if err != nil {
		if errors.Is(err, sysvipc.ErrUnsupported) || errors.Is(err, syscall.ENOSYS) || errors.Is(err, syscall.EPERM) {
			t.Skipf("System V IPC unavailable: %v", err)
		}
		require.NoError(t, err)
	}
	require.NoError(t, q.Remove())
}

func TestMessageCommands(t *testing.T) {
	requireSysV(t)
	key := randomKey()
	t.Cleanup(func() { run(t, new(Remove), testEnv(nil), "-kind", "msg", key) })

	assert.Equal(t, subcommands.ExitSuccess, run(t, new(MsgSend), testEnv(nil), "-create", "-type", "3", key, "hello"))

	var stat bytes.Buffer
	assert.Equal(t, subcommands.ExitSuccess, run(t, new(Stat), testEnv(&stat), "-kind", "msg", key))
	assert.Regexp(t, `messages:\s+1`, stat.String())

	var out bytes.Buffer
	assert.Equal(t, subcommands.ExitSuccess, run(t, new(MsgRecv), testEnv(&out), "-nowait", key))
	assert.Equal(t, "hello", out.String())

	assert.Equal(t, subcommands.ExitFailure, run(t, new(MsgRecv), testEnv(io.Discard), "-nowait", key))
}

func TestSemaphoreCommands(t *testing.T) {
	requireSysV(t)
	key := randomKey()
	t.Cleanup(func() { run(t, new(Remove), testEnv(nil), "-kind", "sem", key) })

	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, run(t, new(SemGet), testEnv(&out), "-create", key, "3"))
	assert.True(t, strings.HasSuffix(out.String(), "\t0 0 0\n"), out.String())

	assert.Equal(t, subcommands.ExitSuccess, run(t, new(SemSet), testEnv(nil), key, "1", "1", "1"))
	assert.Equal(t, subcommands.ExitFailure, run(t, new(SemSet), testEnv(nil), key, "1", "1"))
	assert.Equal(t, subcommands.ExitSuccess, run(t, new(SemOp), testEnv(nil), "-nowait", key, "1:-1"))
	assert.Equal(t, subcommands.ExitFailure, run(t, new(SemOp), testEnv(nil), "-nowait", key, "1:-1"))

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, new(SemGet), testEnv(&out), key))
	assert.True(t, strings.HasSuffix(out.String(), "\t1 0 1\n"), out.String())
}

func TestSharedMemoryCommands(t *testing.T) {
	requireSysV(t)
	key := randomKey()
	t.Cleanup(func() { run(t, new(Remove), testEnv(nil), "-kind", "shm", key) })

	require.Equal(t, subcommands.ExitSuccess, run(t, new(ShmWrite), testEnv(nil), "-create", "-size", "64", "-offset", "4", key, "testing"))

	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, run(t, new(ShmRead), testEnv(&out), "-offset", "4", "-length", "7", key))
	assert.Equal(t, "testing", out.String())

	assert.Equal(t, subcommands.ExitFailure, run(t, new(ShmWrite), testEnv(nil), "-offset", "60", key, "testing"))
}
