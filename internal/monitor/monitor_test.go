package monitor

import (
	"errors"
	"testing"
)

func TestTaskLifecycleCallbacks(t *testing.T) {
	var started, completed string
	var succeeded bool
	m := New(Callbacks{
		OnTaskStarted: func(taskID string) { started = taskID },
		OnTaskCompleted: func(taskID string, success bool) {
			completed = taskID
			succeeded = success
		},
	}, nil)

	m.TaskStarted("t1")
	m.TaskCompleted("t1", true)

	if started != "t1" || completed != "t1" || !succeeded {
		t.Fatalf("callbacks not invoked as expected")
	}
	totals := m.Totals()
	if totals.Started != 1 || totals.Succeeded != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestTaskFailedCallback(t *testing.T) {
	var gotErr error
	m := New(Callbacks{
		OnTaskFailed: func(taskID string, err error) { gotErr = err },
	}, nil)
	m.TaskFailed("t1", errors.New("boom"))
	if gotErr == nil || gotErr.Error() != "boom" {
		t.Fatalf("expected failure callback with error, got %v", gotErr)
	}
}

func TestWorkerOfflineCallback(t *testing.T) {
	var offlineID string
	m := New(Callbacks{OnWorkerOffline: func(id string) { offlineID = id }}, nil)
	m.RecordWorkerActivity("w1", true)
	m.WorkerOffline("w1")
	if offlineID != "w1" {
		t.Fatalf("expected offline callback for w1")
	}
	snaps := m.WorkerSnapshots()
	if len(snaps) != 1 || snaps[0].Online {
		t.Fatalf("expected worker snapshot marked offline, got %+v", snaps)
	}
}

func TestQueueSnapshots(t *testing.T) {
	m := New(Callbacks{}, nil)
	m.RecordQueueStats("default", 5, 10, 5, 1)
	snaps := m.QueueSnapshots()
	if len(snaps) != 1 || snaps[0].Size != 5 || snaps[0].Dropped != 1 {
		t.Fatalf("unexpected queue snapshot: %+v", snaps)
	}
}

func TestPrometheusSinkForwarding(t *testing.T) {
	sink := NewPrometheusSink("novafabric_test")
	m := New(Callbacks{}, sink)
	m.TaskStarted("t1")
	m.TaskCompleted("t1", false)
	m.RecordQueueStats("q", 3, 1, 0, 0)

	mf, err := sink.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mf) == 0 {
		t.Fatalf("expected at least one metric family registered")
	}
}
