package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestQueue_RecoversPanics(t *testing.T) {
	q := newQueue(4, zerolog.Nop(), nil)
	defer q.close()

	if err := q.dispatch(func() { panic("boom") }); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ran := false
	if err := q.do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Fatal("worker stopped after a panic")
	}
}

func TestQueue_Closed(t *testing.T) {
	q := newQueue(1, zerolog.Nop(), nil)
	q.close()
	if err := q.do(context.Background(), func() {}); !errors.Is(err, errClosed) {
		t.Fatalf("want errClosed, got %v", err)
	}
}

func TestTracker_SharesOutstandingFetch(t *testing.T) {
	tr := newTracker[int]()
	key := fetchKey{node: "n", identity: "bob@example.com"}

	first, leader := tr.join(key)
	if !leader {
		t.Fatal("first caller is not the leader")
	}
	second, leader := tr.join(key)
	if leader || second != first {
		t.Fatal("second caller started its own fetch")
	}
	if tr.outstanding() != 1 {
		t.Fatalf("outstanding %d", tr.outstanding())
	}

	tr.finish(key, first, 7, nil)
	<-second.done
	if second.result != 7 {
		t.Fatalf("follower saw %d", second.result)
	}
	if tr.outstanding() != 0 {
		t.Fatal("finished fetch still tracked")
	}
	if _, leader := tr.join(key); !leader {
		t.Fatal("finished key was not released")
	}
}
