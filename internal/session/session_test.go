package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docforge/internal/apperror"
	"docforge/internal/dataset"
	"docforge/internal/mapping"
)

func newData(t *testing.T) *dataset.DataSet {
	t.Helper()
	ds, err := dataset.New([]string{"Name"}, []mapping.Row{{"Name": "Alice"}})
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestStoreLifecycle(t *testing.T) {
	st := NewStore()
	s := st.Create(nil, newData(t))
	if s.ID == "" {
		t.Fatal("empty session id")
	}

	got, err := st.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !st.Delete(s.ID) || st.Delete(s.ID) {
		t.Error("Delete should succeed exactly once")
	}
	if _, err := st.Get(s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestJobBlocksEdits(t *testing.T) {
	s := New("s1", nil, newData(t))

	snapshot, err := s.BeginJob()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginJob(); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second BeginJob err = %v", err)
	}
	if err := s.ReplaceData(newData(t)); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("ReplaceData during job err = %v", err)
	}
	s.EndJob()

	err = s.EditData(func(ds *dataset.DataSet) (*dataset.DataSet, error) {
		_, err := ds.FindReplace("Alice", "Carol", "", true)
		return ds, err
	})
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Rows[0]["Name"] != "Alice" {
		t.Error("edit leaked into the job snapshot")
	}
	if s.Data().Rows[0]["Name"] != "Carol" {
		t.Errorf("edit not applied: %v", s.Data().Rows)
	}
}

func TestFailedEditKeepsData(t *testing.T) {
	s := New("s1", nil, newData(t))
	boom := errors.New("boom")
	err := s.EditData(func(ds *dataset.DataSet) (*dataset.DataSet, error) {
		ds.Rows[0]["Name"] = "changed"
		return nil, boom
	})
	if !errors.Is(err, boom) || s.Data().Rows[0]["Name"] != "Alice" {
		t.Errorf("err = %v, data = %v", err, s.Data().Rows)
	}
}

func TestConcurrentBeginJob(t *testing.T) {
	s := New("s1", nil, newData(t))
	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.BeginJob(); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if started != 1 {
		t.Errorf("%d jobs started, want 1", started)
	}
}

func TestJanitorSweep(t *testing.T) {
	st := NewStore()
	idle := st.Create(nil, newData(t))
	busy := st.Create(nil, newData(t))
	fresh := st.Create(nil, newData(t))
	if _, err := busy.BeginJob(); err != nil {
		t.Fatal(err)
	}

	var expired []string
	j := NewJanitor(st, time.Hour, func(_ context.Context, id string) error {
		expired = append(expired, id)
		return nil
	}, nil)

	later := time.Now().Add(2 * time.Hour)
	fresh.touch(later)
	if n := j.Sweep(context.Background(), later); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if len(expired) != 1 || expired[0] != idle.ID {
		t.Errorf("expired = %v, want [%s]", expired, idle.ID)
	}
	if st.Len() != 2 {
		t.Errorf("store holds %d sessions", st.Len())
	}
}
