package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore backs the project, member and user fakes with shared maps so
// that DeleteWithMembers and Restore see the same rows as member lookups.
type fakeStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]models.Project
	members  map[uuid.UUID]models.Member
	users    map[uuid.UUID]bool

	failRestore     int
	failMemberWrite bool
	onRestoreFail   func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: make(map[uuid.UUID]models.Project),
		members:  make(map[uuid.UUID]models.Member),
		users:    make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		Projects: &fakeProjectRepo{s},
		Members:  &fakeMemberRepo{s},
		Users:    &fakeUserRepo{s},
	}
}

func (s *fakeStore) addProject(creator uuid.UUID) models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Project{ID: uuid.New(), Name: "project", CreatorID: creator, CreateTime: time.Now()}
	s.projects[p.ID] = p
	return p
}

func (s *fakeStore) addMember(projectID, userID uuid.UUID, role string) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.Member{ID: uuid.New(), ProjectID: projectID, UserID: userID, ProjectRole: role}
	s.members[m.ID] = m
	s.users[userID] = true
	return m
}

func (s *fakeStore) addUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = true
}

func (s *fakeStore) hasProject(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[id]
	return ok
}

func (s *fakeStore) membersOf(projectID uuid.UUID) []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersOfLocked(projectID)
}

func (s *fakeStore) membersOfLocked(projectID uuid.UUID) []models.Member {
	var out []models.Member
	for _, m := range s.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out
}

func (s *fakeStore) findMemberLocked(projectID, userID uuid.UUID) (models.Member, bool) {
	for _, m := range s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			return m, true
		}
	}
	return models.Member{}, false
}

type fakeProjectRepo struct{ s *fakeStore }

func (r *fakeProjectRepo) FindAll(ctx context.Context) ([]models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Project, 0, len(r.s.projects))
	for _, p := range r.s.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeProjectRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *fakeProjectRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Project
	for _, id := range ids {
		if p, ok := r.s.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) Create(ctx context.Context, project *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreateTime = time.Now()
	r.s.projects[project.ID] = *project
	return nil
}

func (r *fakeProjectRepo) Save(ctx context.Context, project *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.projects[project.ID] = *project
	return nil
}

func (r *fakeProjectRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.projects, id)
	return nil
}

func (r *fakeProjectRepo) DeleteWithMembers(ctx context.Context, id uuid.UUID) (*models.Project, []models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	members := r.s.membersOfLocked(id)
	for _, m := range members {
		delete(r.s.members, m.ID)
	}
	delete(r.s.projects, id)
	return &p, members, nil
}

func (r *fakeProjectRepo) Restore(ctx context.Context, project *models.Project, members []models.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failRestore > 0 {
		r.s.failRestore--
		if r.s.onRestoreFail != nil {
			r.s.onRestoreFail()
		}
		return errStoreDown
	}
	r.s.projects[project.ID] = *project
	for _, m := range members {
		r.s.members[m.ID] = m
	}
	return nil
}

type fakeMemberRepo struct{ s *fakeStore }

func (r *fakeMemberRepo) FindByProjectID(ctx context.Context, projectID uuid.UUID) ([]models.Member, error) {
	return r.s.membersOf(projectID), nil
}

func (r *fakeMemberRepo) FindAllByUserID(ctx context.Context, userID uuid.UUID) ([]models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Member
	for _, m := range r.s.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) FindOne(ctx context.Context, projectID, userID uuid.UUID) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.findMemberLocked(projectID, userID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *fakeMemberRepo) Exists(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.findMemberLocked(projectID, userID)
	return ok, nil
}

func (r *fakeMemberRepo) Create(ctx context.Context, member *models.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMemberWrite {
		return errStoreDown
	}
	if _, ok := r.s.findMemberLocked(member.ProjectID, member.UserID); ok {
		return errors.New("UNIQUE constraint failed: members.project_id, members.user_id")
	}
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	r.s.members[member.ID] = *member
	return nil
}

func (r *fakeMemberRepo) Save(ctx context.Context, member *models.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMemberWrite {
		return errStoreDown
	}
	r.s.members[member.ID] = *member
	return nil
}

func (r *fakeMemberRepo) Delete(ctx context.Context, projectID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.findMemberLocked(projectID, userID)
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.s.members, m.ID)
	return nil
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) FindAll(ctx context.Context) ([]models.UserID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.UserID
	for id := range r.s.users {
		out = append(out, models.UserID{ID: id})
	}
	return out, nil
}

func (r *fakeUserRepo) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.users[id], nil
}

func (r *fakeUserRepo) Save(ctx context.Context, id uuid.UUID) error {
	r.s.addUser(id)
	return nil
}

func (r *fakeUserRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.users[id] {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

type published struct {
	topic string
	event events.Event
}

// recordingPublisher captures published events. failTopics makes publishes
// to the named topics fail.
type recordingPublisher struct {
	mu         sync.Mutex
	events     []published
	failTopics map[string]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{failTopics: make(map[string]bool)}
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTopics[topic] {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, published{topic: topic, event: ev})
	return nil
}

func (p *recordingPublisher) on(topic string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e.event)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingPublisher) sagaEvents(topic string) []events.SagaEvent {
	var out []events.SagaEvent
	for _, ev := range p.on(topic) {
		if s, ok := ev.(events.SagaEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

// testEnv wires the services over the fakes.
type testEnv struct {
	store       *fakeStore
	publisher   *recordingPublisher
	metrics     *Metrics
	registry    *SagaRegistry
	permissions *PermissionService
	members     *MemberService
	saga        *SagaService
	projects    *ProjectService
	users       *UserReplicaService
	topics      config.EventsConfig
}

func newTestEnv() *testEnv {
	cfg := config.DefaultConfig()
	store := newFakeStore()
	repos := store.repositories()
	pub := newRecordingPublisher()
	metrics := NewMetrics()
	registry := NewSagaRegistry()

	permissions := NewPermissionService(repos.Projects, repos.Members)
	members := NewMemberService(repos.Members, repos.Users, permissions, pub, cfg.Events.DomainTopic, metrics)
	saga := NewSagaService(registry, repos.Projects, pub, &cfg.Events, &cfg.Saga, metrics)
	projects := NewProjectService(repos.Projects, members, permissions, saga, pub, &cfg.Events, metrics)

	return &testEnv{
		store:       store,
		publisher:   pub,
		metrics:     metrics,
		registry:    registry,
		permissions: permissions,
		members:     members,
		saga:        saga,
		projects:    projects,
		users:       NewUserReplicaService(repos.Users),
		topics:      cfg.Events,
	}
}

func newUser(role string) *models.User {
	return &models.User{ID: uuid.New(), Username: "user", GlobalRole: role}
}
