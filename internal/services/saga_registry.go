package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SagaRegistry holds the in-flight project deletion sagas keyed by project id.
// Whoever takes an entry out owns its terminal action.
type SagaRegistry struct {
	mu    sync.Mutex
	sagas map[uuid.UUID]*ProjectDeletedSaga
}

func NewSagaRegistry() *SagaRegistry {
	return &SagaRegistry{sagas: make(map[uuid.UUID]*ProjectDeletedSaga)}
}

// Register stores saga unless one is already registered for the project.
func (r *SagaRegistry) Register(saga *ProjectDeletedSaga) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := saga.Project.ID
	if _, ok := r.sagas[id]; ok {
		return false
	}
	r.sagas[id] = saga
	return true
}

// Get returns a copy of the saga for projectID.
func (r *SagaRegistry) Get(projectID uuid.UUID) (ProjectDeletedSaga, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saga, ok := r.sagas[projectID]
	if !ok {
		return ProjectDeletedSaga{}, false
	}
	return saga.clone(), true
}

// Take removes and returns the saga for projectID.
func (r *SagaRegistry) Take(projectID uuid.UUID) (*ProjectDeletedSaga, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saga, ok := r.sagas[projectID]
	if ok {
		delete(r.sagas, projectID)
	}
	return saga, ok
}

// MarkIssuesDeleted records the issue service's success for a started saga.
// If that completes the saga it is removed and returned. Sagas that are not in
// STARTED state are left untouched. state is the saga's state after the call.
func (r *SagaRegistry) MarkIssuesDeleted(projectID uuid.UUID) (taken *ProjectDeletedSaga, state SagaState, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saga, found := r.sagas[projectID]
	if !found {
		return nil, "", false
	}
	if saga.State != SagaStateStarted {
		return nil, saga.State, true
	}

	saga.IssuesDeleted = true
	if !saga.IsComplete() {
		return nil, saga.State, true
	}
	delete(r.sagas, projectID)
	return saga, saga.State, true
}

// TakeExpired removes and returns every saga whose deadline is before now.
func (r *SagaRegistry) TakeExpired(now time.Time) []*ProjectDeletedSaga {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*ProjectDeletedSaga
	for id, saga := range r.sagas {
		if saga.Deadline.Before(now) {
			expired = append(expired, saga)
			delete(r.sagas, id)
		}
	}
	return expired
}

// List returns copies of all registered sagas, oldest first.
func (r *SagaRegistry) List() []ProjectDeletedSaga {
	r.mu.Lock()
	list := make([]ProjectDeletedSaga, 0, len(r.sagas))
	for _, saga := range r.sagas {
		list = append(list, saga.clone())
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

func (r *SagaRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sagas)
}
