package metrics

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsKernelCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.KernelCall("msgsnd", nil)
	c.KernelCall("msgsnd", nil)
	c.KernelCall("msgrcv", syscall.EAGAIN)
	c.KernelCall("semop", fmt.Errorf("semop: %w", syscall.EIDRM))
	c.KernelCall("shmat", errors.New("opaque"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.KernelCalls.WithLabelValues("msgsnd", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.KernelCalls.WithLabelValues("msgrcv", "EAGAIN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.KernelCalls.WithLabelValues("semop", "EIDRM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.KernelCalls.WithLabelValues("shmat", "error")))
}

func TestCollectorCountsRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	for i := 0; i < 3; i++ {
		c.Retry("semop")
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Retries.WithLabelValues("semop")))

	count, err := testutil.GatherAndCount(reg, "sysvipc_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewCollectorRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	assert.Panics(t, func() { NewCollector(reg) })
}
