package launch

import "testing"

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(&fakeScheduler{}, DefaultDelays)

	a := r.Get("s1", "c1")
	if r.Get("s1", "c1") != a {
		t.Error("Get() returned a different sequence for the same key")
	}
	if r.Get("s1", "c2") == a || r.Get("s2", "c1") == a {
		t.Error("sequences shared across campaigns or sessions")
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if r.Peek("s9", "c1") != nil {
		t.Error("Peek() created a sequence")
	}
}

func TestRegistryStopSession(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRegistry(sched, DefaultDelays)

	seq := r.Get("s1", "c1")
	for range Tasks {
		seq.CompleteTask()
	}
	seq.Launch()
	other := r.Get("s10", "c1")

	r.StopSession("s1")
	if sched.live() != 0 {
		t.Errorf("%d timers live after StopSession", sched.live())
	}
	if r.Peek("s1", "c1") != nil {
		t.Error("session sequence still registered")
	}
	if r.Peek("s10", "c1") != other {
		t.Error("StopSession removed another session's sequence")
	}
}

func TestRegistryClose(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRegistry(sched, DefaultDelays)
	for _, id := range []string{"s1", "s2"} {
		seq := r.Get(id, "c1")
		for range Tasks {
			seq.CompleteTask()
		}
		seq.Launch()
	}

	r.Close()
	if r.Len() != 0 || sched.live() != 0 {
		t.Errorf("Len() = %d, live timers = %d after Close", r.Len(), sched.live())
	}
}
