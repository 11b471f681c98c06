package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richinsley/sysvipc"
)

// MsgSend implements subcommands.Command for the "msgsend" command.
type MsgSend struct {
	createFlags
	mtype  int64
	noWait bool
}

// Name implements subcommands.Command.Name.
func (*MsgSend) Name() string {
	return "msgsend"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*MsgSend) Synopsis() string {
	return "send a message to a message queue"
}

// Usage implements subcommands.Command.Usage.
func (*MsgSend) Usage() string {
	return `msgsend [flags] <key> <message|->

Sends message, or stdin when the message is "-", to the queue at key.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *MsgSend) SetFlags(f *flag.FlagSet) {
	m.createFlags.setFlags(f)
	f.Int64Var(&m.mtype, "type", 1, "message type, must be positive")
	f.BoolVar(&m.noWait, "nowait", false, "fail instead of waiting when the queue is full")
}

// Execute implements subcommands.Command.Execute.
func (m *MsgSend) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usage(f)
	}
	env := envFrom(args)

	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	flags, err := m.createFlags.flags()
	if err != nil {
		return failf(env, "%v", err)
	}
	data, err := payload(env, f.Arg(1))
	if err != nil {
		return failf(env, "%v", err)
	}

	q, err := sysvipc.OpenMessageQueue(key, flags, env.Options...)
	if err != nil {
		return failf(env, "opening queue %#x: %v", uint32(key), err)
	}
	var msgFlags sysvipc.MsgFlag
	if m.noWait {
		msgFlags |= sysvipc.MsgNoWait
	}
	if err := q.Send(ctx, m.mtype, data, msgFlags); err != nil {
		return failf(env, "sending to queue %#x: %v", uint32(key), err)
	}
	return subcommands.ExitSuccess
}

// MsgRecv implements subcommands.Command for the "msgrecv" command.
type MsgRecv struct {
	mtype       int64
	maxLength   int
	noWait      bool
	truncate    bool
	except      bool
	follow      bool
	metricsAddr string
}

// Name implements subcommands.Command.Name.
func (*MsgRecv) Name() string {
	return "msgrecv"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*MsgRecv) Synopsis() string {
	return "receive messages from a message queue"
}

// Usage implements subcommands.Command.Usage.
func (*MsgRecv) Usage() string {
	return `msgrecv [flags] <key>

Receives one message from the queue at key and writes its payload to stdout.
With -follow it keeps receiving, one message per line, until interrupted.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *MsgRecv) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&m.mtype, "type", 0, "message type selector: 0 for any, >0 for that type, <0 for the lowest type up to its absolute value")
	f.IntVar(&m.maxLength, "max", 8192, "largest payload to accept")
	f.BoolVar(&m.noWait, "nowait", false, "fail instead of waiting when no message is queued")
	f.BoolVar(&m.truncate, "truncate", false, "truncate messages longer than -max instead of failing")
	f.BoolVar(&m.except, "except", false, "receive the first message whose type differs from -type")
	f.BoolVar(&m.follow, "follow", false, "keep receiving until interrupted")
	f.StringVar(&m.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while following, overrides SYSVIPC_METRICS_ADDR")
}

// Execute implements subcommands.Command.Execute.
func (m *MsgRecv) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage(f)
	}
	env := envFrom(args)

	key, err := parseKey(f.Arg(0))
	if err != nil {
		return failf(env, "%v", err)
	}
	q, err := sysvipc.OpenMessageQueue(key, 0, env.Options...)
	if err != nil {
		return failf(env, "opening queue %#x: %v", uint32(key), err)
	}

	var flags sysvipc.MsgFlag
	if m.noWait {
		flags |= sysvipc.MsgNoWait
	}
	if m.truncate {
		flags |= sysvipc.MsgNoError
	}
	if m.except {
		flags |= sysvipc.MsgExcept
	}

	if !m.follow {
		msg, err := q.Receive(ctx, m.mtype, m.maxLength, flags)
		if err != nil {
			return failf(env, "receiving from queue %#x: %v", uint32(key), err)
		}
		if _, err := env.stdout().Write(msg); err != nil {
			return failf(env, "writing message: %v", err)
		}
		return subcommands.ExitSuccess
	}

	addr := m.metricsAddr
	if addr == "" && env.Config != nil {
		addr = env.Config.Metrics.Address
	}
	if addr != "" && env.Registry != nil {
		stop := serveMetrics(env, addr)
		defer stop()
	}

	for {
		msg, err := q.ReceiveMessage(ctx, m.mtype, m.maxLength, flags)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			return subcommands.ExitSuccess
		case m.noWait && errors.Is(err, sysvipc.ErrWouldBlock):
			return subcommands.ExitSuccess
		default:
			return failf(env, "receiving from queue %#x: %v", uint32(key), err)
		}
		if _, err := fmt.Fprintf(env.stdout(), "%d\t%s\n", msg.Type, msg.Data); err != nil {
			return failf(env, "writing message: %v", err)
		}
	}
}

// serveMetrics serves the registry on addr until the returned func is
// called.
func serveMetrics(env *Env, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(env.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	env.Logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
