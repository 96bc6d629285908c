package timeline

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/class1/graduate/pkg/shootingtime"
)

func TestMergeSortsByFirstExperience(t *testing.T) {
	personal := []*Event{
		mkEvent("birthday", "2021-03-01T10:00:00", "2019-01-01"),
		mkEvent("camp", "2020-01-01"),
	}
	shared := []*Event{
		mkEvent("sports day", "2020-06-15T08:00:00"),
		mkEvent("graduation", "2022-06-30"),
	}

	tl := Merge(personal, shared)
	want := []string{"2020-01-01", "2020-06-15T08:00:00", "2021-03-01T10:00:00", "2022-06-30"}
	if got := keys(tl); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order.\nwant: %#v\ngot:  %#v", want, got)
	}
	events := tl.Events()
	for i := 1; i < len(events); i++ {
		if events[i].Less(events[i-1]) {
			t.Fatalf("events %d and %d out of order", i-1, i)
		}
	}
}

func TestMergeTiesKeepPersonalFirst(t *testing.T) {
	tl := Merge(
		[]*Event{mkEvent("mine", "2020-06-15")},
		[]*Event{mkEvent("ours", "2020-06-15T00:00:00")},
	)
	if tl.Events()[0].Description != "mine" {
		t.Fatalf("tie should keep personal event first, got %q", tl.Events()[0].Description)
	}
}

func TestMergeDropsEmptyEvents(t *testing.T) {
	tl := Merge([]*Event{NewEvent("empty", nil), nil}, []*Event{mkEvent("x", "2020-01-01")})
	if tl.Len() != 1 {
		t.Fatalf("expected 1 event, got %d", tl.Len())
	}
}

func TestLocate(t *testing.T) {
	tl := Merge(nil, []*Event{
		mkEvent("A", "2020-01-01"),
		mkEvent("B", "2020-06-15"),
		mkEvent("C", "2021-03-01"),
	})

	cases := []struct {
		target string
		want   int
	}{
		{"2020-06-15", 1},
		{"2019-12-31", 0},
		{"2020-01-01", 0},
		{"2020-01-01T00:00:01", 1},
		{"2021-03-01", 2},
		{"2021-03-02", 3},
	}
	for _, c := range cases {
		if got := tl.Locate(shootingtime.MustParse(c.target)); got != c.want {
			t.Fatalf("Locate(%s) = %d, want %d", c.target, got, c.want)
		}
	}
}

func TestStartAtClampsPastTheEnd(t *testing.T) {
	tl := Merge(nil, []*Event{mkEvent("A", "2020-01-01"), mkEvent("B", "2020-06-15")})
	if got := tl.StartAt(shootingtime.MustParse("2030-01-01")); got != 1 {
		t.Fatalf("StartAt past the end = %d, want 1", got)
	}
	if ev, _ := tl.Cursor(); ev != 1 {
		t.Fatalf("cursor = %d, want 1", ev)
	}

	empty := Merge(nil, nil)
	if got := empty.StartAt(shootingtime.MustParse("2020-01-01")); got != 0 {
		t.Fatalf("StartAt on empty timeline = %d", got)
	}
}

func TestNavigation(t *testing.T) {
	tl := Merge(nil, []*Event{
		mkEvent("A", "2020-01-01", "2020-01-02", "2020-01-03"),
		mkEvent("B", "2020-06-15"),
	})

	if tl.PreviousEvent() {
		t.Fatalf("PreviousEvent at 0 should report false")
	}
	if got := tl.PreviousExperience(); got != 2 {
		t.Fatalf("PreviousExperience should wrap to 2, got %d", got)
	}
	if got := tl.NextExperience(); got != 0 {
		t.Fatalf("NextExperience should wrap to 0, got %d", got)
	}
	tl.NextExperience()
	if !tl.NextEvent() {
		t.Fatalf("NextEvent should move to B")
	}
	if tl.NextEvent() {
		t.Fatalf("NextEvent on the last event should report false")
	}
	tl.PreviousEvent()
	if ev, ex := tl.Cursor(); ev != 0 || ex != 1 {
		t.Fatalf("cursor = (%d, %d), want (0, 1): per-event position is kept", ev, ex)
	}
	if err := tl.Jump(5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Jump(5) err = %v", err)
	}

	if err := tl.Seek(0, 2); err != nil {
		t.Fatalf("Seek(0, 2): %v", err)
	}
	if ev, ex := tl.Cursor(); ev != 0 || ex != 2 {
		t.Fatalf("cursor after Seek = (%d, %d), want (0, 2)", ev, ex)
	}
	if err := tl.Seek(1, 1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Seek(1, 1) err = %v", err)
	}
}

func TestSlot(t *testing.T) {
	tl := Merge(nil, []*Event{mkEvent("A", "2020-01-01", "2020-01-02")})
	x, err := tl.Slot(0, 1)
	if err != nil || x.Path != "/image/A/b.jpg" {
		t.Fatalf("Slot(0,1) = %v, %v", x, err)
	}
	if _, err := tl.Slot(0, 2); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Slot(0,2) err = %v", err)
	}
	if _, err := tl.Slot(1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Slot(1,0) err = %v", err)
	}
}

func TestExperienceStateMachine(t *testing.T) {
	x := NewExperience("/a.jpg", shootingtime.MustParse("2020-01-01"), nil)
	if x.State() != Unloaded || x.Done() != nil {
		t.Fatalf("fresh experience should be unloaded with no load outstanding")
	}
	if !x.Claim() {
		t.Fatalf("first claim should succeed")
	}
	if x.Claim() {
		t.Fatalf("second claim while loading should fail")
	}
	done := x.Done()
	x.Complete(nil, errors.New("boom"))
	<-done
	if x.State() != Unloaded {
		t.Fatalf("failed load should return to unloaded, got %v", x.State())
	}
	if !x.Claim() {
		t.Fatalf("retry claim should succeed")
	}
	x.Complete([]byte("img"), nil)
	if b, ok := x.Payload(); !ok || string(b) != "img" {
		t.Fatalf("payload = %q, %v", b, ok)
	}
	if x.Claim() {
		t.Fatalf("loaded experience should not be claimable")
	}
}

func TestConcurrentClaimsAreExclusive(t *testing.T) {
	x := NewExperience("/a.jpg", shootingtime.MustParse("2020-01-01"), nil)
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if x.Claim() {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
}
