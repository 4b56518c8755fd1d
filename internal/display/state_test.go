package display

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

type fakeDispatcher struct {
	requests []attendance.Request
}

func (f *fakeDispatcher) Dispatch(req attendance.Request) bool {
	f.requests = append(f.requests, req)
	return true
}

func testConfig() config.DisplayConfig {
	return config.DisplayConfig{
		LoadingTimeoutFrames: 30,
		CycleFrames:          20,
		ProfileFrames:        10,
	}
}

func newTestMachine() (*Machine, *attendance.Cache, *fakeDispatcher) {
	cache := attendance.NewCache()
	d := &fakeDispatcher{}
	return NewMachine(testConfig(), cache, d, logging.Discard()), cache, d
}

func TestMachine_ProfileShownThenIdle(t *testing.T) {
	m, cache, d := newTestMachine()

	// Frame 0: S3 recognized.
	m.Step([]string{"S3"})
	if m.Mode() != MatchedPending {
		t.Fatalf("frame 0: mode = %v, want MATCHED_PENDING", m.Mode())
	}
	if len(d.requests) != 1 || d.requests[0].ID != "S3" {
		t.Fatalf("dispatch = %+v, want one request for S3", d.requests)
	}
	epoch := d.requests[0].Epoch

	var modes []Mode
	modes = append(modes, m.Mode())
	for frame := 1; frame <= 20; frame++ {
		if frame == 5 {
			cache.Put(attendance.Entry{ID: "S3", Epoch: epoch, Recorded: true})
		}
		m.Step([]string{"S3"})
		modes = append(modes, m.Mode())
	}

	for frame, mode := range modes {
		var want Mode
		switch {
		case frame < 5:
			want = MatchedPending
		case frame < 20:
			want = ShowingProfile
		default:
			want = Idle
		}
		if mode != want {
			t.Errorf("frame %d: mode = %v, want %v", frame, mode, want)
		}
	}

	// S3 still in front of the camera on an idle machine: new session.
	m.Step([]string{"S3"})
	if len(d.requests) != 2 || m.Mode() != MatchedPending {
		t.Errorf("expected a second session after the cycle, got %d dispatches, mode %v", len(d.requests), m.Mode())
	}
}

func TestMachine_FetchTimeout(t *testing.T) {
	m, _, d := newTestMachine()

	m.Step([]string{"S4"})
	for frame := 1; frame <= 30; frame++ {
		m.Step(nil)
		if m.Mode() != MatchedPending {
			t.Fatalf("frame %d: mode = %v, want MATCHED_PENDING", frame, m.Mode())
		}
		if v := m.View(); v.ShowProfile || !v.Loading {
			t.Fatalf("frame %d: view = %+v, want loading", frame, v)
		}
	}

	m.Step(nil)
	if m.Mode() != Idle {
		t.Errorf("frame 31: mode = %v, want IDLE", m.Mode())
	}
	if len(d.requests) != 1 {
		t.Errorf("dispatches = %d, want 1", len(d.requests))
	}
}

func TestMachine_NoPreemption(t *testing.T) {
	m, _, d := newTestMachine()

	m.Step([]string{"A", "B"})
	m.Step([]string{"B"})
	m.Step([]string{"C"})

	if s := m.Session(); s == nil || s.StudentID != "A" {
		t.Errorf("session = %+v, want A", s)
	}
	if len(d.requests) != 1 {
		t.Errorf("dispatches = %d, want 1", len(d.requests))
	}
}

func TestMachine_IgnoresStaleEntry(t *testing.T) {
	m, cache, d := newTestMachine()

	// Result from an earlier session for the same identity.
	cache.Put(attendance.Entry{ID: "S1", Epoch: 0})

	m.Step([]string{"S1"})
	m.Step(nil)
	if m.Mode() != MatchedPending {
		t.Fatalf("stale entry must not be shown, mode = %v", m.Mode())
	}

	cache.Put(attendance.Entry{ID: "S1", Epoch: d.requests[0].Epoch})
	m.Step(nil)
	if m.Mode() != ShowingProfile {
		t.Errorf("mode = %v, want SHOWING_PROFILE", m.Mode())
	}
}

func TestMachine_CounterMonotonicPerSession(t *testing.T) {
	m, cache, d := newTestMachine()

	sessions := map[string][]int{}
	for frame := 0; frame < 100; frame++ {
		m.Step([]string{"S1"})
		if len(d.requests) > 0 {
			last := d.requests[len(d.requests)-1]
			cache.Put(attendance.Entry{ID: "S1", Epoch: last.Epoch})
		}
		if s := m.Session(); s != nil {
			sessions[s.ID.String()] = append(sessions[s.ID.String()], s.Counter)
		}
	}

	if len(sessions) < 2 {
		t.Fatalf("expected several sessions, got %d", len(sessions))
	}
	for id, counters := range sessions {
		if counters[0] != 0 {
			t.Errorf("session %s: first counter = %d, want 0", id, counters[0])
		}
		for i := 1; i < len(counters); i++ {
			if counters[i] <= counters[i-1] {
				t.Errorf("session %s: counter not increasing: %v", id, counters)
				break
			}
		}
	}
}

func TestMachine_EpochsIncrease(t *testing.T) {
	m, _, d := newTestMachine()

	for range 3 {
		m.Step([]string{"S1"})
		for m.Mode() != Idle {
			m.Step(nil)
		}
	}

	if len(d.requests) != 3 {
		t.Fatalf("dispatches = %d, want 3", len(d.requests))
	}
	for i := 1; i < len(d.requests); i++ {
		if d.requests[i].Epoch <= d.requests[i-1].Epoch {
			t.Errorf("epochs not increasing: %+v", d.requests)
		}
	}
}

func TestMachine_ViewPanels(t *testing.T) {
	tests := []struct {
		name        string
		recorded    bool
		steps       int
		wantPanel   Panel
		wantProfile bool
	}{
		{"early cycle shows profile", true, 3, PanelProfile, true},
		{"profile until frame 10", true, 10, PanelProfile, true},
		{"later cycle shows marked", true, 11, PanelMarked, false},
		{"already marked", false, 15, PanelAlreadyMarked, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cache, _ := newTestMachine()
			cache.Put(attendance.Entry{ID: "S1", Epoch: 1, Recorded: tt.recorded})

			m.Step([]string{"S1"})
			for range tt.steps {
				m.Step(nil)
			}

			v := m.View()
			if v.Mode != ShowingProfile {
				t.Fatalf("mode = %v", v.Mode)
			}
			if v.Counter != tt.steps {
				t.Errorf("counter = %d, want %d", v.Counter, tt.steps)
			}
			if v.Panel != tt.wantPanel || v.ShowProfile != tt.wantProfile {
				t.Errorf("view = panel %d profile %v, want panel %d profile %v",
					v.Panel, v.ShowProfile, tt.wantPanel, tt.wantProfile)
			}
		})
	}
}

func TestMachine_IdleView(t *testing.T) {
	m, _, _ := newTestMachine()
	m.Step(nil)
	v := m.View()
	if v.Mode != Idle || v.Panel != PanelActive || v.Loading {
		t.Errorf("idle view = %+v", v)
	}
}

func TestMode_String(t *testing.T) {
	if Idle.String() != "IDLE" || ShowingProfile.String() != "SHOWING_PROFILE" || Mode(9).String() != "UNKNOWN" {
		t.Error("unexpected mode names")
	}
}
