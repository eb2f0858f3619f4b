package core

import "testing"

func TestTaskPendAndRun(t *testing.T) {
	ResetTasks()

	ran := 0
	task := &Task{Name: "t", Priority: PriorityLow, Run: func() { ran++ }}
	RegisterTask(task)

	RunPendingTasks()
	if ran != 0 {
		t.Errorf("Task ran without being pended: %d runs", ran)
	}

	task.Pend()
	if !task.Pending() {
		t.Error("Pend did not mark the task pending")
	}

	RunPendingTasks()
	if ran != 1 {
		t.Errorf("Expected 1 run, got %d", ran)
	}
	if task.Pending() {
		t.Error("Pending flag not cleared after run")
	}
}

func TestTaskPendCoalesces(t *testing.T) {
	ResetTasks()

	ran := 0
	task := &Task{Name: "t", Priority: PriorityLow, Run: func() { ran++ }}
	RegisterTask(task)

	task.Pend()
	task.Pend()
	task.Pend()

	RunPendingTasks()
	if ran != 1 {
		t.Errorf("Expected repeated pends to coalesce into 1 run, got %d", ran)
	}
}

func TestTaskPriorityOrder(t *testing.T) {
	ResetTasks()

	var order []string
	low := &Task{Name: "low", Priority: PriorityLow, Run: func() { order = append(order, "low") }}
	high := &Task{Name: "high", Priority: PriorityHigh, Run: func() { order = append(order, "high") }}

	// Register low first so ordering comes from priority, not insertion.
	RegisterTask(low)
	RegisterTask(high)

	low.Pend()
	high.Pend()

	RunPendingTasks()
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Errorf("Expected high before low, got %v", order)
	}
}

func TestTaskEqualPriorityRegistrationOrder(t *testing.T) {
	ResetTasks()

	var order []string
	first := &Task{Name: "first", Priority: PriorityLow, Run: func() { order = append(order, "first") }}
	second := &Task{Name: "second", Priority: PriorityLow, Run: func() { order = append(order, "second") }}

	RegisterTask(first)
	RegisterTask(second)

	second.Pend()
	first.Pend()

	RunPendingTasks()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Expected registration order for equal priority, got %v", order)
	}
}

func TestTaskRePendDuringRun(t *testing.T) {
	ResetTasks()

	ran := 0
	var task *Task
	task = &Task{Name: "t", Priority: PriorityLow, Run: func() {
		ran++
		if ran == 1 {
			task.Pend()
		}
	}}
	RegisterTask(task)

	task.Pend()
	RunPendingTasks()

	if ran != 2 {
		t.Errorf("Expected a re-pend during the run to cause a second run, got %d", ran)
	}
}

func TestTaskHighPendedDuringLowRuns(t *testing.T) {
	ResetTasks()

	var order []string
	var high *Task
	high = &Task{Name: "high", Priority: PriorityHigh, Run: func() { order = append(order, "high") }}
	lowA := &Task{Name: "lowA", Priority: PriorityLow, Run: func() {
		order = append(order, "lowA")
		high.Pend()
	}}
	lowB := &Task{Name: "lowB", Priority: PriorityLow, Run: func() { order = append(order, "lowB") }}

	RegisterTask(high)
	RegisterTask(lowA)
	RegisterTask(lowB)

	lowA.Pend()
	lowB.Pend()

	RunPendingTasks()
	want := []string{"lowA", "high", "lowB"}
	if len(order) != 3 || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] {
		t.Errorf("Expected %v, got %v", want, order)
	}
}

func TestRegisterTaskTwice(t *testing.T) {
	ResetTasks()

	ran := 0
	task := &Task{Name: "t", Priority: PriorityLow, Run: func() { ran++ }}
	RegisterTask(task)
	RegisterTask(task)

	task.Pend()
	RunPendingTasks()
	if ran != 1 {
		t.Errorf("Double registration caused %d runs, expected 1", ran)
	}
}
