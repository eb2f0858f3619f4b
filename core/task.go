package core

import "sync/atomic"

// Task is a deferred unit of work run from the dispatch loop. Interrupt
// handlers and timer handlers pend tasks; RunPendingTasks drains them in
// priority order on the main goroutine. Tasks never preempt each other.
type Task struct {
	Name     string
	Priority uint8
	Run      func()

	pending uint32 // atomic flag
	next    *Task
}

// Task priorities. Higher runs first; equal priorities run in
// registration order.
const (
	PriorityLow  uint8 = 1
	PriorityHigh uint8 = 2
)

var taskList *Task

// RegisterTask adds a task to the dispatch order, sorted highest priority
// first. Registering a task twice is a no-op. Call during init, before the
// dispatch loop starts.
func RegisterTask(t *Task) {
	for cur := taskList; cur != nil; cur = cur.next {
		if cur == t {
			return
		}
	}

	if taskList == nil || t.Priority > taskList.Priority {
		t.next = taskList
		taskList = t
		return
	}

	current := taskList
	for current.next != nil && current.next.Priority >= t.Priority {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

// Pend marks the task runnable. Safe to call from an interrupt handler:
// no allocation, no blocking. Pends arriving before the task runs coalesce
// into a single run.
func (t *Task) Pend() {
	atomic.StoreUint32(&t.pending, 1)
}

// Pending reports whether the task is waiting to run.
func (t *Task) Pending() bool {
	return atomic.LoadUint32(&t.pending) != 0
}

// RunPendingTasks runs pended tasks until none remain. After every task
// completes the scan restarts from the highest priority, so a high-priority
// pend arriving mid-run wins the next slot. A task pended while its Run is
// executing runs again.
func RunPendingTasks() {
	for {
		var next *Task
		for t := taskList; t != nil; t = t.next {
			if atomic.LoadUint32(&t.pending) != 0 {
				next = t
				break
			}
		}
		if next == nil {
			return
		}

		atomic.StoreUint32(&next.pending, 0)
		next.Run()
	}
}

// ResetTasks clears the task list and any pending flags.
func ResetTasks() {
	for t := taskList; t != nil; t = t.next {
		atomic.StoreUint32(&t.pending, 0)
	}
	taskList = nil
}
