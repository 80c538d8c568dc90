// Package task runs named units of concurrent work for the farmhub device.
//
// A task is a goroutine with a name, a stack budget and a priority. Go's
// runtime owns stacks and scheduling, so the budget and priority are kept as
// metadata for diagnostics; they are validated so that a misconfigured task
// aborts startup instead of silently running.
//
// # One-shot and looping tasks
//
//	task.Run("init", 4096, task.DefaultPriority, func(t *task.Task) { ... })
//	task.Loop("sampler", 3072, task.DefaultPriority, func(t *task.Task) {
//	    sample()
//	    t.DelayUntil(time.Second)
//	})
//
// # Cadence
//
// Delay sleeps relative to now. DelayUntil sleeps until one period after the
// previous wake time, so a body that overruns catches up instead of drifting.
// A missed deadline is logged and the cadence restarts from the current time.
//
// # Stopping
//
// Handle.Stop interrupts any pending Delay/DelayUntil and ends Loop after the
// current iteration. There is no pre-emption: a body that never delays runs
// to completion.
package task
