// Package sysvipc provides a uniform object model over the three System V
// interprocess communication facilities: message queues, semaphore sets and
// shared memory segments.
//
// The kernel exposes these as three unrelated syscall families with separate
// identifier spaces and statistics structures. sysvipc binds each kernel
// object to a Handle that dispatches stat, remove and permission queries to
// the right family, and layers facility-specific operations on top.
//
// # Handles and Lifecycle
//
// A handle is obtained from one of the open functions, each of which performs
// the corresponding get syscall:
//
//	q, err := sysvipc.OpenMessageQueue(key, sysvipc.Create|0600)
//	set, err := sysvipc.OpenSemaphoreSet(key, 5, sysvipc.Create|0600)
//	shm, err := sysvipc.OpenSharedMemory(key, 8192, sysvipc.Create|0660)
//
// Opening the same key twice with Create yields two handles on the same
// kernel object. Kernel objects outlive the handles that refer to them; they
// are destroyed only by Remove (from any process) or a reboot:
//
//	err := q.Remove()
//
// After a successful Remove the handle is inert: every further operation
// fails with ErrClosedHandle and a second Remove fails with
// ErrAlreadyRemoved.
//
// Operations that depend on the current state of the object, such as
// semaphore indexes or the shared memory size, fetch fresh statistics from
// the kernel on every call and never rely on values cached by an earlier
// call.
//
// # Message Queues
//
// Messages carry a positive type and an arbitrary payload:
//
//	err := q.Send(ctx, 1, []byte("message"), 0)
//	msg, err := q.Receive(ctx, 1, 100, 0)
//
// Go values can be exchanged directly using the configured Serializer,
// MessagePack by default:
//
//	err := q.SendValue(ctx, 2, map[string]int{"answer": 42}, 0)
//
// # Semaphores
//
// A semaphore set is manipulated with atomic batches of operations:
//
//	set.SetValues([]uint16{1, 1, 1, 1, 1})
//	set.Apply(ctx, sysvipc.SemaphoreOperation{Index: 2, Delta: -1}) // acquire
//	set.Apply(ctx, sysvipc.SemaphoreOperation{Index: 2, Delta: 1})  // release
//
// SemaphoreSet.Semaphore wraps one element in the Semaphore interface with
// Acquire, Release, TryAcquire and AcquireTimeout.
//
// # Shared Memory
//
//	shm.Attach(0)
//	shm.Write([]byte("testing"), 0)
//	data, err := shm.Read(100, 0)
//	shm.Detach()
//
// SharedMemory also implements io.ReaderAt and io.WriterAt, NewSegmentCursor
// adds sequential access, and TypedSlice returns zero-copy typed views.
//
// # Blocking Operations
//
// Send, Receive and Apply may have to wait for the object. How they wait
// depends on the context:
//
//   - With a context that can never be cancelled, such as
//     context.Background(), the syscall blocks in the kernel. The Go runtime
//     keeps running other goroutines meanwhile.
//   - With a cancellable context the syscall is issued with IPC_NOWAIT and
//     retried on a backoff schedule (see RetryPolicy) until it succeeds,
//     fails for another reason, or the context ends.
//
// Interrupted syscalls (EINTR) are always retried. Passing MsgNoWait or
// SemNoWait turns a wait into an immediate ErrWouldBlock.
//
// # Errors
//
// Failed syscalls are reported as *KernelError, which unwraps to the
// syscall.Errno. Lifecycle and validation failures are reported with the
// sentinel errors of this package and can be tested with errors.Is.
//
// # Platform Support
//
// sysvipc supports Linux on amd64, arm64, riscv64 and loong64, where the
// kernel structure layouts are known. On other platforms every open function
// fails with ErrUnsupported.
package sysvipc
