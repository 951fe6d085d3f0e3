// Package session keeps the template and dataset of each upload, keyed by an
// opaque session id.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"docforge/internal/apperror"
	"docforge/internal/dataset"
	"docforge/internal/processor"
)

var errJobRunning = apperror.New(apperror.KindConflict, "A generation job is already running for this session")

// Session binds one template and one dataset. The template is immutable.
// The dataset is replaced wholesale on every edit, so a snapshot handed to a
// generation job is never mutated underneath it.
type Session struct {
	ID           string
	Template     *processor.Template
	TemplateName string
	DataName     string
	CreatedAt    time.Time

	mu         sync.Mutex
	data       *dataset.DataSet
	jobRunning bool
	lastAccess time.Time
}

func New(id string, tmpl *processor.Template, ds *dataset.DataSet) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Template:   tmpl,
		CreatedAt:  now,
		data:       ds,
		lastAccess: now,
	}
}

// Data returns the current dataset. Callers must not modify it.
func (s *Session) Data() *dataset.DataSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// ReplaceData swaps in a new dataset unless a job is running.
func (s *Session) ReplaceData(ds *dataset.DataSet) error {
	return s.EditData(func(*dataset.DataSet) (*dataset.DataSet, error) { return ds, nil })
}

// EditData applies edit to a copy of the dataset and installs the result.
func (s *Session) EditData(edit func(*dataset.DataSet) (*dataset.DataSet, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobRunning {
		return errJobRunning
	}
	next, err := edit(s.data.Clone())
	if err != nil {
		return err
	}
	s.data = next
	s.lastAccess = time.Now()
	return nil
}

// BeginJob marks the session busy and returns the dataset snapshot the job
// must use. It fails with a Conflict error if another job is running.
func (s *Session) BeginJob() (*dataset.DataSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobRunning {
		return nil, errJobRunning
	}
	s.jobRunning = true
	s.lastAccess = time.Now()
	return s.data, nil
}

func (s *Session) EndJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobRunning = false
	s.lastAccess = time.Now()
}

func (s *Session) JobRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobRunning
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// idleSince reports when the session was last used, and false while a job
// holds it.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess, !s.jobRunning
}

// Store is a concurrency-safe map of live sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session under a fresh id.
func (st *Store) Create(tmpl *processor.Template, ds *dataset.DataSet) *Session {
	s := New(uuid.New().String(), tmpl, ds)
	st.Put(s)
	return s
}

// Put registers s, replacing any session with the same id.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns the session and refreshes its idle timer.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperror.New(apperror.KindNotFound, fmt.Sprintf("Session %s not found or expired", id))
	}
	s.touch(time.Now())
	return s, nil
}

func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Expired removes and returns the ids of sessions idle for longer than ttl.
// Sessions with a running job are never expired.
func (st *Store) Expired(now time.Time, ttl time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	var ids []string
	for id, s := range st.sessions {
		last, idle := s.idleSince()
		if idle && now.Sub(last) > ttl {
			ids = append(ids, id)
			delete(st.sessions, id)
		}
	}
	return ids
}
