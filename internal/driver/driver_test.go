package driver

import (
	"context"
	"fmt"
	"testing"

	"github.com/pixil98/go-testutil"
)

// countingManager records how many times it ticked.
type countingManager struct {
	ticks int
	err   error
}

func (m *countingManager) Tick(context.Context) error {
	m.ticks++
	return m.err
}

// orderedManager appends its label to a shared trace on every tick.
type orderedManager struct {
	label string
	trace *[]string
}

func (m *orderedManager) Tick(context.Context) error {
	*m.trace = append(*m.trace, m.label)
	return nil
}

func TestScheduler_Advance(t *testing.T) {
	m := &countingManager{}
	s := NewScheduler([]Manager{m})

	err := s.Advance(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "tick count", s.TickCount(), uint64(5))
	testutil.AssertEqual(t, "manager ticks", m.ticks, 5)
}

func TestScheduler_Advance_StageOrder(t *testing.T) {
	var trace []string
	s := NewScheduler([]Manager{
		&orderedManager{label: "combat", trace: &trace},
		&orderedManager{label: "regen", trace: &trace},
		&orderedManager{label: "population", trace: &trace},
	})

	if err := s.Advance(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp := []string{"combat", "regen", "population", "combat", "regen", "population"}
	testutil.AssertEqual(t, "trace length", len(trace), len(exp))
	for i := range exp {
		testutil.AssertEqual(t, fmt.Sprintf("trace[%d]", i), trace[i], exp[i])
	}
}

func TestScheduler_Advance_StageErrorDoesNotStopTick(t *testing.T) {
	failing := &countingManager{err: fmt.Errorf("boom")}
	after := &countingManager{}
	s := NewScheduler([]Manager{failing, after})

	err := s.Advance(context.Background(), 3)
	if err != nil {
		t.Fatalf("stage errors must not fail the advance: %v", err)
	}

	testutil.AssertEqual(t, "tick count", s.TickCount(), uint64(3))
	testutil.AssertEqual(t, "later stage still ran", after.ticks, 3)
}

func TestScheduler_TestMode(t *testing.T) {
	s := NewScheduler(nil)

	testutil.AssertEqual(t, "default", s.TestMode(), false)
	s.SetTestMode(true)
	testutil.AssertEqual(t, "enabled", s.TestMode(), true)
	s.SetTestMode(false)
	testutil.AssertEqual(t, "disabled", s.TestMode(), false)
}

func TestScheduler_TestModeOption(t *testing.T) {
	s := NewScheduler(nil, WithTestMode(true))
	testutil.AssertEqual(t, "test mode", s.TestMode(), true)
}

func TestScheduler_SetTickCount(t *testing.T) {
	m := &countingManager{}
	s := NewScheduler([]Manager{m})

	s.SetTickCount(41)
	if err := s.Advance(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "tick count", s.TickCount(), uint64(42))
}

func TestScheduler_Sync(t *testing.T) {
	s := NewScheduler(nil)

	ran := false
	s.Sync(func() { ran = true })
	testutil.AssertEqual(t, "callback ran", ran, true)
}

func TestScheduler_TickCountInsideSync(t *testing.T) {
	s := NewScheduler(nil)
	s.SetTickCount(7)

	// Snapshot capture and restore read and set the counter while
	// holding the sync gate; neither may block on it.
	var got uint64
	s.Sync(func() {
		got = s.TickCount()
		s.SetTickCount(9)
	})

	testutil.AssertEqual(t, "read under gate", got, uint64(7))
	testutil.AssertEqual(t, "set under gate", s.TickCount(), uint64(9))
}

func TestScheduler_SetManagers(t *testing.T) {
	s := NewScheduler(nil)
	m := &countingManager{}
	s.SetManagers([]Manager{m})

	if err := s.Advance(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "manager ticks", m.ticks, 1)
}
