/*
Package metrics exports System V IPC activity as Prometheus metrics.

# Overview

Collector implements sysvipc.Observer. Install it on handles with
sysvipc.WithObserver to count kernel calls by operation and outcome, and
the polls made while blocking operations wait.

# Usage

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	q, err := sysvipc.OpenMessageQueue(key, sysvipc.Create|0600,
		sysvipc.WithObserver(collector))

# Metrics

  - sysvipc_kernel_calls_total{op, result}: syscalls made, result is "ok", the errno name, or "error"
  - sysvipc_retries_total{op}: polls that found the object busy
*/
package metrics

import (
	"errors"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sys/unix"
)

// Collector holds the IPC Prometheus metrics.
type Collector struct {
	KernelCalls *prometheus.CounterVec
	Retries     *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		KernelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysvipc_kernel_calls_total",
				Help: "Total number of System V IPC syscalls",
			},
			[]string{"op", "result"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysvipc_retries_total",
				Help: "Total number of polls that found the IPC object busy",
			},
			[]string{"op"},
		),
	}
}

// KernelCall implements sysvipc.Observer.
func (c *Collector) KernelCall(op string, err error) {
	c.KernelCalls.WithLabelValues(op, result(err)).Inc()
}

// Retry implements sysvipc.Observer.
func (c *Collector) Retry(op string) {
	c.Retries.WithLabelValues(op).Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return name
		}
	}
	return "error"
}
