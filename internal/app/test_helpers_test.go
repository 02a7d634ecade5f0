package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// Hand-written mocks for the secondary ports. Each mock stores records in
// maps and exposes error-injection fields for the failure paths.

// mockProjectRepository implements secondary.ProjectRepository for testing.
type mockProjectRepository struct {
	projects map[string]*secondary.ProjectRecord
}

func newMockProjectRepository() *mockProjectRepository {
	return &mockProjectRepository{projects: make(map[string]*secondary.ProjectRecord)}
}

func (m *mockProjectRepository) Create(ctx context.Context, project *secondary.ProjectRecord) error {
	if _, ok := m.projects[project.Name]; ok {
		return errors.New("project already exists")
	}
	copied := *project
	m.projects[project.Name] = &copied
	return nil
}

func (m *mockProjectRepository) GetByName(ctx context.Context, name string) (*secondary.ProjectRecord, error) {
	if p, ok := m.projects[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %s: %w", name, secondary.ErrNotFound)
}

func (m *mockProjectRepository) List(ctx context.Context, includeArchived bool) ([]*secondary.ProjectRecord, error) {
	var out []*secondary.ProjectRecord
	for _, p := range m.projects {
		if !includeArchived && p.Archived {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProjectRepository) Update(ctx context.Context, project *secondary.ProjectRecord) error {
	if _, ok := m.projects[project.Name]; !ok {
		return errors.New("not found")
	}
	copied := *project
	m.projects[project.Name] = &copied
	return nil
}

func (m *mockProjectRepository) SetPhase(ctx context.Context, name string, phase int) error {
	if p, ok := m.projects[name]; ok {
		p.CurrentPhase = phase
		return nil
	}
	return errors.New("not found")
}

func (m *mockProjectRepository) SetStatus(ctx context.Context, name, status string) error {
	if p, ok := m.projects[name]; ok {
		p.Status = status
		return nil
	}
	return errors.New("not found")
}

func (m *mockProjectRepository) Archive(ctx context.Context, name string) error {
	if p, ok := m.projects[name]; ok {
		p.Archived = true
		return nil
	}
	return errors.New("not found")
}

var _ secondary.ProjectRepository = (*mockProjectRepository)(nil)

// mockRunRepository implements secondary.RunRepository for testing.
type mockRunRepository struct {
	runs map[string]*secondary.RunRecord
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{runs: make(map[string]*secondary.RunRecord)}
}

func (m *mockRunRepository) Create(ctx context.Context, run *secondary.RunRecord) error {
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *mockRunRepository) GetByID(ctx context.Context, id string) (*secondary.RunRecord, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("run %s not found", id)
}

func (m *mockRunRepository) GetActiveByProject(ctx context.Context, projectName string) (*secondary.RunRecord, error) {
	for _, r := range m.runs {
		if r.ProjectName == projectName && r.Status == "running" {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRunRepository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	var out []*secondary.RunRecord
	for _, r := range m.runs {
		if filters.ProjectName != "" && r.ProjectName != filters.ProjectName {
			continue
		}
		if filters.Status != "" && r.Status != filters.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRunRepository) SetPhase(ctx context.Context, id string, phase int) error {
	if r, ok := m.runs[id]; ok {
		r.CurrentPhase = phase
		return nil
	}
	return errors.New("not found")
}

func (m *mockRunRepository) SetStatus(ctx context.Context, id, status string, setCompleted bool) error {
	if r, ok := m.runs[id]; ok {
		r.Status = status
		if setCompleted {
			r.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		}
		return nil
	}
	return errors.New("not found")
}

var _ secondary.RunRepository = (*mockRunRepository)(nil)

// mockPhaseStateRepository implements secondary.PhaseStateRepository for testing.
type mockPhaseStateRepository struct {
	states map[string]*secondary.PhaseStateRecord
}

func newMockPhaseStateRepository() *mockPhaseStateRepository {
	return &mockPhaseStateRepository{states: make(map[string]*secondary.PhaseStateRecord)}
}

func phaseStateKey(runID string, phaseNumber int) string {
	return fmt.Sprintf("%s:%d", runID, phaseNumber)
}

func (m *mockPhaseStateRepository) Init(ctx context.Context, state *secondary.PhaseStateRecord) error {
	key := phaseStateKey(state.RunID, state.PhaseNumber)
	if _, ok := m.states[key]; ok {
		return errors.New("phase already initialized")
	}
	copied := *state
	m.states[key] = &copied
	return nil
}

func (m *mockPhaseStateRepository) Get(ctx context.Context, runID string, phaseNumber int) (*secondary.PhaseStateRecord, error) {
	if s, ok := m.states[phaseStateKey(runID, phaseNumber)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("phase state %s:%d not found", runID, phaseNumber)
}

func (m *mockPhaseStateRepository) RecordResult(ctx context.Context, runID string, phaseNumber int, result secondary.WorkerResultRecord) error {
	s, ok := m.states[phaseStateKey(runID, phaseNumber)]
	if !ok {
		return errors.New("phase state not found")
	}
	for _, existing := range s.Results {
		if existing.WorkerID == result.WorkerID {
			return nil
		}
	}
	s.Results = append(s.Results, result)
	return nil
}

func (m *mockPhaseStateRepository) SetPhaseBranch(ctx context.Context, runID string, phaseNumber int, branch string) error {
	s, ok := m.states[phaseStateKey(runID, phaseNumber)]
	if !ok {
		return errors.New("phase state not found")
	}
	s.PhaseBranch = branch
	return nil
}

var _ secondary.PhaseStateRepository = (*mockPhaseStateRepository)(nil)

// mockTaskRepository implements secondary.TaskRepository for testing.
type mockTaskRepository struct {
	tasks map[string]*secondary.TaskRecord
	order []string
}

func newMockTaskRepository() *mockTaskRepository {
	return &mockTaskRepository{tasks: make(map[string]*secondary.TaskRecord)}
}

func taskKey(runID string, phaseNumber int, taskID string) string {
	return fmt.Sprintf("%s:%d:%s", runID, phaseNumber, taskID)
}

func (m *mockTaskRepository) CreateBatch(ctx context.Context, tasks []*secondary.TaskRecord) error {
	for _, t := range tasks {
		key := taskKey(t.RunID, t.PhaseNumber, t.TaskID)
		if _, ok := m.tasks[key]; ok {
			return errors.New("task already exists")
		}
		copied := *t
		m.tasks[key] = &copied
		m.order = append(m.order, key)
	}
	return nil
}

func (m *mockTaskRepository) Get(ctx context.Context, runID string, phaseNumber int, taskID string) (*secondary.TaskRecord, error) {
	if t, ok := m.tasks[taskKey(runID, phaseNumber, taskID)]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("task %s not found", taskID)
}

func (m *mockTaskRepository) ListByPhase(ctx context.Context, runID string, phaseNumber int) ([]*secondary.TaskRecord, error) {
	var out []*secondary.TaskRecord
	for _, key := range m.order {
		t := m.tasks[key]
		if t.RunID == runID && t.PhaseNumber == phaseNumber {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTaskRepository) UpdateStatus(ctx context.Context, runID string, phaseNumber int, taskID, status string, setCompleted bool) error {
	t, ok := m.tasks[taskKey(runID, phaseNumber, taskID)]
	if !ok {
		return errors.New("not found")
	}
	t.Status = status
	if setCompleted {
		t.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return nil
}

func (m *mockTaskRepository) AssignWorker(ctx context.Context, runID string, phaseNumber int, taskID, sessionID, branch, worktreePath string) error {
	t, ok := m.tasks[taskKey(runID, phaseNumber, taskID)]
	if !ok {
		return errors.New("not found")
	}
	t.SessionID = sessionID
	t.Branch = branch
	t.WorktreePath = worktreePath
	return nil
}

var _ secondary.TaskRepository = (*mockTaskRepository)(nil)

// mockRetryStateRepository implements secondary.RetryStateRepository for testing.
type mockRetryStateRepository struct {
	states map[string]*secondary.RetryStateRecord
}

func newMockRetryStateRepository() *mockRetryStateRepository {
	return &mockRetryStateRepository{states: make(map[string]*secondary.RetryStateRecord)}
}

func (m *mockRetryStateRepository) Get(ctx context.Context, runID string, phaseNumber int, taskID string) (*secondary.RetryStateRecord, error) {
	if s, ok := m.states[taskKey(runID, phaseNumber, taskID)]; ok {
		return s, nil
	}
	return nil, nil
}

func (m *mockRetryStateRepository) Save(ctx context.Context, state *secondary.RetryStateRecord) error {
	copied := *state
	m.states[taskKey(state.RunID, state.PhaseNumber, state.TaskID)] = &copied
	return nil
}

func (m *mockRetryStateRepository) Clear(ctx context.Context, runID string, phaseNumber int, taskID string) error {
	delete(m.states, taskKey(runID, phaseNumber, taskID))
	return nil
}

var _ secondary.RetryStateRepository = (*mockRetryStateRepository)(nil)

// mockEscalationRepository implements secondary.EscalationRepository for testing.
type mockEscalationRepository struct {
	escalations map[string]*secondary.EscalationRecord
	nextID      int
}

func newMockEscalationRepository() *mockEscalationRepository {
	return &mockEscalationRepository{
		escalations: make(map[string]*secondary.EscalationRecord),
		nextID:      1,
	}
}

func (m *mockEscalationRepository) Create(ctx context.Context, escalation *secondary.EscalationRecord) error {
	copied := *escalation
	if copied.Status == "" {
		copied.Status = "open"
	}
	m.escalations[escalation.ID] = &copied
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationRecord, error) {
	if e, ok := m.escalations[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("escalation %s not found", id)
}

func (m *mockEscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*secondary.EscalationRecord, error) {
	var out []*secondary.EscalationRecord
	for _, e := range m.escalations {
		if filters.RunID != "" && e.RunID != filters.RunID {
			continue
		}
		if filters.TaskID != "" && e.TaskID != filters.TaskID {
			continue
		}
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEscalationRepository) Resolve(ctx context.Context, id, resolution, resolvedBy string) error {
	e, ok := m.escalations[id]
	if !ok || e.Status != "open" {
		return errors.New("open escalation not found")
	}
	e.Status = "resolved"
	e.Resolution = resolution
	e.ResolvedBy = resolvedBy
	return nil
}

func (m *mockEscalationRepository) ResolveByTask(ctx context.Context, runID string, phaseNumber int, taskID, resolution string) ([]string, error) {
	var ids []string
	for _, e := range m.escalations {
		if e.RunID == runID && e.PhaseNumber == phaseNumber && e.TaskID == taskID && e.Status == "open" {
			e.Status = "resolved"
			e.Resolution = resolution
			e.ResolvedBy = "auto"
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (m *mockEscalationRepository) GetNextID(ctx context.Context) (string, error) {
	id := fmt.Sprintf("ESC-%03d", m.nextID)
	m.nextID++
	return id, nil
}

var _ secondary.EscalationRepository = (*mockEscalationRepository)(nil)

// mockReviewChainRepository implements secondary.ReviewChainRepository for testing.
type mockReviewChainRepository struct {
	chains map[string]*secondary.ReviewChainRecord
}

func newMockReviewChainRepository() *mockReviewChainRepository {
	return &mockReviewChainRepository{chains: make(map[string]*secondary.ReviewChainRecord)}
}

func (m *mockReviewChainRepository) Init(ctx context.Context, chain *secondary.ReviewChainRecord) error {
	key := phaseStateKey(chain.RunID, chain.PhaseNumber)
	if _, ok := m.chains[key]; ok {
		return errors.New("chain already initialized")
	}
	copied := *chain
	m.chains[key] = &copied
	return nil
}

func (m *mockReviewChainRepository) Get(ctx context.Context, runID string, phaseNumber int) (*secondary.ReviewChainRecord, error) {
	if c, ok := m.chains[phaseStateKey(runID, phaseNumber)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("review chain %s:%d not found", runID, phaseNumber)
}

func (m *mockReviewChainRepository) Update(ctx context.Context, chain *secondary.ReviewChainRecord) error {
	key := phaseStateKey(chain.RunID, chain.PhaseNumber)
	if _, ok := m.chains[key]; !ok {
		return errors.New("not found")
	}
	copied := *chain
	m.chains[key] = &copied
	return nil
}

var _ secondary.ReviewChainRepository = (*mockReviewChainRepository)(nil)

// mockGitClient implements secondary.GitClient for testing.
type mockGitClient struct {
	branches       map[string]bool
	merges         []string
	checkouts      []string
	worktrees      []string
	aborts         int
	conflictOn     map[string][]string // branch -> conflict files
	mergeErrOn     map[string]error
	addWorktreeErr error
}

func newMockGitClient() *mockGitClient {
	return &mockGitClient{
		branches:   make(map[string]bool),
		conflictOn: make(map[string][]string),
		mergeErrOn: make(map[string]error),
	}
}

func (m *mockGitClient) CreateBranch(ctx context.Context, repoDir, branch, base string) error {
	m.branches[branch] = true
	return nil
}

func (m *mockGitClient) BranchExists(ctx context.Context, repoDir, branch string) (bool, error) {
	return m.branches[branch], nil
}

func (m *mockGitClient) AddWorktree(ctx context.Context, repoDir, path, branch, base string) error {
	if m.addWorktreeErr != nil {
		return m.addWorktreeErr
	}
	m.branches[branch] = true
	m.worktrees = append(m.worktrees, path)
	return nil
}

func (m *mockGitClient) RemoveWorktree(ctx context.Context, repoDir, path string) error {
	return nil
}

func (m *mockGitClient) Checkout(ctx context.Context, repoDir, branch string) error {
	m.checkouts = append(m.checkouts, branch)
	return nil
}

func (m *mockGitClient) Merge(ctx context.Context, repoDir, source string) (*secondary.MergeResult, error) {
	if err, ok := m.mergeErrOn[source]; ok {
		return nil, err
	}
	if files, ok := m.conflictOn[source]; ok {
		return &secondary.MergeResult{Conflicted: true, ConflictFiles: files}, nil
	}
	m.merges = append(m.merges, source)
	return &secondary.MergeResult{}, nil
}

func (m *mockGitClient) AbortMerge(ctx context.Context, repoDir string) error {
	m.aborts++
	return nil
}

func (m *mockGitClient) CurrentBranch(ctx context.Context, repoDir string) (string, error) {
	return "main", nil
}

func (m *mockGitClient) IsDirty(ctx context.Context, repoDir string) (bool, error) {
	return false, nil
}

var _ secondary.GitClient = (*mockGitClient)(nil)

// mockAgentGateway implements secondary.AgentGateway for testing.
type mockAgentGateway struct {
	mu       sync.Mutex
	spawns   []secondary.SpawnRequest
	spawnErr error
	// failRoles makes Spawn fail for specific roles only.
	failRoles map[secondary.AgentRole]bool
	// block, when set, holds every Spawn until the channel is closed.
	block chan struct{}
}

func newMockAgentGateway() *mockAgentGateway {
	return &mockAgentGateway{failRoles: make(map[secondary.AgentRole]bool)}
}

func (m *mockAgentGateway) Spawn(ctx context.Context, req secondary.SpawnRequest) (*secondary.SessionHandle, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spawnErr != nil {
		return nil, m.spawnErr
	}
	if m.failRoles[req.Role] {
		return nil, errors.New("spawn failed")
	}
	m.spawns = append(m.spawns, req)
	id := fmt.Sprintf("sess-%d", len(m.spawns))
	return &secondary.SessionHandle{ID: id, Target: id + ":0.0"}, nil
}

func (m *mockAgentGateway) spawnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spawns)
}

func (m *mockAgentGateway) spawnsFor(role secondary.AgentRole) []secondary.SpawnRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []secondary.SpawnRequest
	for _, s := range m.spawns {
		if s.Role == role {
			out = append(out, s)
		}
	}
	return out
}

var _ secondary.AgentGateway = (*mockAgentGateway)(nil)

// mockActivityLog implements secondary.ActivityLog for testing.
type mockActivityLog struct {
	entries []secondary.ActivityEntry
}

func newMockActivityLog() *mockActivityLog {
	return &mockActivityLog{}
}

func (m *mockActivityLog) Append(ctx context.Context, project string, entry secondary.ActivityEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockActivityLog) Tail(ctx context.Context, project string, limit int, typeFilter string) ([]secondary.ActivityEntry, error) {
	return m.entries, nil
}

func (m *mockActivityLog) hasType(typ string) bool {
	for _, e := range m.entries {
		if e.Type == typ {
			return true
		}
	}
	return false
}

var _ secondary.ActivityLog = (*mockActivityLog)(nil)

// mockJobScheduler implements JobScheduler for testing.
type mockJobScheduler struct {
	scheduled map[string]time.Duration
	cancelled []string
}

func newMockJobScheduler() *mockJobScheduler {
	return &mockJobScheduler{scheduled: make(map[string]time.Duration)}
}

func (m *mockJobScheduler) Schedule(ctx context.Context, job *secondary.ScheduledJobRecord, delay time.Duration) error {
	m.scheduled[job.Key] = delay
	return nil
}

func (m *mockJobScheduler) Cancel(ctx context.Context, key string) error {
	m.cancelled = append(m.cancelled, key)
	delete(m.scheduled, key)
	return nil
}

var _ JobScheduler = (*mockJobScheduler)(nil)
