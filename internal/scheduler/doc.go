// Package scheduler gates every outbound remote call behind one admission
// point.
//
// A Scheduler serves submitted tasks in submission order, keeps at most
// MaxInFlight of them running, and refuses to dispatch while its projected
// request quota is at or below the configured reserve. The projection is the
// last remote-reported remaining count plus one token per elapsed replenish
// interval; every task that reports a fresh remaining count overwrites it.
//
// The scheduler never retries a task. A task's error is returned to its
// submitter unchanged.
package scheduler
