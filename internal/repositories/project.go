package repositories

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskvault/internal/apperr"
	"taskvault/internal/models"
	"taskvault/internal/shared"
	"taskvault/internal/storage"
)

// TaskCounter reports task membership so the advisory per-project
// counters can be reconciled without the project repository holding a
// reference to the task collection.
type TaskCounter interface {
	CountAll() int
	CountByProject(projectID string) int
}

type ProjectRepository struct {
	gw      *storage.Gateway
	logger  *zap.Logger
	metrics *shared.StorageMetrics

	mu       sync.Mutex
	projects []*models.Project
	loaded   bool
}

func NewProjectRepository(gw *storage.Gateway, logger *zap.Logger, metrics *shared.StorageMetrics) *ProjectRepository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProjectRepository{gw: gw, logger: logger, metrics: metrics}
}

func (r *ProjectRepository) ensureLoadedLocked() {
	if r.loaded {
		return
	}

	r.loaded = true

	var raws []json.RawMessage
	if !r.gw.Load(storage.ProjectsKey, &raws) {
		r.projects = []*models.Project{}
		return
	}

	projects := make([]*models.Project, 0, len(raws))

	for _, raw := range raws {
		project, err := models.ProjectFromRecord(raw)
		if err != nil {
			r.logger.Warn("dropping corrupted project record", zap.Error(err))
			r.metrics.RecordDroppedRecord("project")
			continue
		}
		projects = append(projects, project)
	}

	r.projects = projects
}

func (r *ProjectRepository) persistLocked() error {
	return r.gw.Save(storage.ProjectsKey, r.projects)
}

func (r *ProjectRepository) findLocked(id string) (int, *models.Project) {
	for i, project := range r.projects {
		if project.ID == id {
			return i, project
		}
	}
	return -1, nil
}

func (r *ProjectRepository) findByNameLocked(name string) *models.Project {
	for _, project := range r.projects {
		if strings.EqualFold(project.Name, name) {
			return project
		}
	}
	return nil
}

// EnsureDefaultExists makes sure the reserved default project is
// present, first in the list. Safe to call repeatedly.
func (r *ProjectRepository) EnsureDefaultExists(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	if _, existing := r.findLocked(models.DefaultProjectID); existing != nil {
		return nil
	}

	r.projects = append([]*models.Project{models.NewDefaultProject()}, r.projects...)

	if err := r.persistLocked(); err != nil {
		r.projects = r.projects[1:]
		return err
	}

	return nil
}

func (r *ProjectRepository) Create(ctx context.Context, input models.ProjectInput) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	if input.ID == models.DefaultProjectID {
		return nil, apperr.NewConflictError("project id is reserved")
	}

	project, err := models.NewProject(input)
	if err != nil {
		return nil, err
	}

	if existing := r.findByNameLocked(project.Name); existing != nil {
		return nil, apperr.NewConflictError("a project named %s already exists", existing.Name)
	}

	r.projects = append(r.projects, project)

	if err := r.persistLocked(); err != nil {
		r.projects = r.projects[:len(r.projects)-1]
		return nil, err
	}

	return project, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	_, project := r.findLocked(id)
	if project == nil {
		return nil, apperr.NewNotFoundError("project", id)
	}

	return project, nil
}

func (r *ProjectRepository) GetAll(ctx context.Context) []*models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	out := make([]*models.Project, len(r.projects))
	copy(out, r.projects)
	return out
}

// Delete removes a project. The reserved default project cannot be
// deleted; callers are expected to reassign the project's tasks first.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	idx, project := r.findLocked(id)
	if project == nil {
		return apperr.NewNotFoundError("project", id)
	}
	if project.IsDefault() {
		return apperr.NewConflictError("the default project cannot be deleted")
	}

	r.projects = append(r.projects[:idx], r.projects[idx+1:]...)

	if err := r.persistLocked(); err != nil {
		r.projects = append(r.projects, nil)
		copy(r.projects[idx+1:], r.projects[idx:])
		r.projects[idx] = project
		return err
	}

	return nil
}

func (r *ProjectRepository) Rename(ctx context.Context, id, name string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	name = strings.TrimSpace(name)

	_, project := r.findLocked(id)
	if project == nil {
		return nil, apperr.NewNotFoundError("project", id)
	}

	if errs := models.ValidateProjectName(name); len(errs) > 0 {
		return nil, apperr.NewValidationError(errs...)
	}

	if existing := r.findByNameLocked(name); existing != nil && existing.ID != id {
		return nil, apperr.NewConflictError("a project named %s already exists", existing.Name)
	}

	previous := project.Name
	project.Name = name

	if err := r.persistLocked(); err != nil {
		project.Name = previous
		return nil, err
	}

	return project, nil
}

func (r *ProjectRepository) SearchByName(ctx context.Context, query string) []*models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	query = strings.ToLower(strings.TrimSpace(query))
	out := []*models.Project{}

	for _, project := range r.projects {
		if query == "" || strings.Contains(strings.ToLower(project.Name), query) {
			out = append(out, project)
		}
	}

	return out
}

type ProjectSortField string

const (
	ProjectSortByName      ProjectSortField = "name"
	ProjectSortByCreatedAt ProjectSortField = "createdAt"
	ProjectSortByTaskCount ProjectSortField = "taskCount"
)

// Sorted returns a sorted copy with the default project pinned first.
func (r *ProjectRepository) Sorted(ctx context.Context, field ProjectSortField, descending bool) []*models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	out := make([]*models.Project, len(r.projects))
	copy(out, r.projects)

	less := projectLess(field)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault() != out[j].IsDefault() {
			return out[i].IsDefault()
		}
		if descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	return out
}

func projectLess(field ProjectSortField) func(a, b *models.Project) bool {
	switch field {
	case ProjectSortByTaskCount:
		return func(a, b *models.Project) bool {
			return a.TaskCount < b.TaskCount
		}
	case ProjectSortByCreatedAt:
		return func(a, b *models.Project) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	default:
		return func(a, b *models.Project) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
}

// SyncTaskCounts reconciles every advisory counter against actual task
// membership. The default project counts the whole collection, matching
// its master-view behavior.
func (r *ProjectRepository) SyncTaskCounts(ctx context.Context, counter TaskCounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	previous := make([]int, len(r.projects))
	changed := false

	for i, project := range r.projects {
		previous[i] = project.TaskCount

		count := counter.CountByProject(project.ID)
		if project.IsDefault() {
			count = counter.CountAll()
		}

		if project.TaskCount != count {
			project.TaskCount = count
			changed = true
		}
	}

	if !changed {
		return nil
	}

	if err := r.persistLocked(); err != nil {
		for i, project := range r.projects {
			project.TaskCount = previous[i]
		}
		return err
	}

	return nil
}

// Invalidate discards the cached collection so the next call reloads
// from the gateway. Used after out-of-band repairs to the stored data.
func (r *ProjectRepository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.projects = nil
	r.loaded = false
}

// BackupRecord is the versioned export envelope for project backups.
type BackupRecord struct {
	Version    int               `json:"version"`
	ExportedAt string            `json:"exportedAt"`
	Projects   []*models.Project `json:"projects"`
}

const backupVersion = 1

func (r *ProjectRepository) Export(ctx context.Context) BackupRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	projects := make([]*models.Project, len(r.projects))
	for i, project := range r.projects {
		projects[i] = project.Clone()
	}

	return BackupRecord{
		Version:    backupVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Projects:   projects,
	}
}

type ImportOptions struct {
	// Replace drops every non-default project before importing; the
	// default mode merges into the existing list.
	Replace bool
	// Overwrite lets an imported project win a name collision. Skipped
	// otherwise.
	Overwrite bool
}

type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Import applies a backup, reporting partial successes per project.
// The reserved default project is never replaced by imported data.
func (r *ProjectRepository) Import(ctx context.Context, backup BackupRecord, opts ImportOptions) (ImportResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoadedLocked()

	result := ImportResult{Errors: []string{}}

	if backup.Version > backupVersion {
		return result, apperr.NewValidationError("unsupported backup version")
	}

	snapshot := make([]*models.Project, len(r.projects))
	for i, project := range r.projects {
		snapshot[i] = project.Clone()
	}

	if opts.Replace {
		kept := []*models.Project{}
		for _, project := range r.projects {
			if project.IsDefault() {
				kept = append(kept, project)
			}
		}
		r.projects = kept
	}

	for _, incoming := range backup.Projects {
		if incoming == nil {
			result.Errors = append(result.Errors, "empty project entry")
			continue
		}
		if incoming.ID == models.DefaultProjectID {
			result.Skipped++
			continue
		}

		candidate, err := models.NewProject(models.ProjectInput{
			ID:        incoming.ID,
			Name:      incoming.Name,
			TaskCount: incoming.TaskCount,
		})
		if err != nil {
			result.Errors = append(result.Errors, incoming.Name+": "+err.Error())
			continue
		}
		if !incoming.CreatedAt.IsZero() {
			candidate.CreatedAt = incoming.CreatedAt
		}

		existing := r.findByNameLocked(candidate.Name)
		if existing == nil {
			if _, byID := r.findLocked(candidate.ID); byID != nil {
				existing = byID
			}
		}

		if existing != nil {
			if !opts.Overwrite || existing.IsDefault() {
				result.Skipped++
				continue
			}
			*existing = *candidate
			result.Imported++
			continue
		}

		r.projects = append(r.projects, candidate)
		result.Imported++
	}

	if err := r.persistLocked(); err != nil {
		r.projects = snapshot
		return ImportResult{Errors: []string{}}, err
	}

	return result, nil
}
