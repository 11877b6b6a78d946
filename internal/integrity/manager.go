package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskvault/internal/models"
	"taskvault/internal/shared"
	"taskvault/internal/storage"
)

// CacheInvalidator is implemented by repositories whose in-memory view
// must be discarded after the stored records change underneath them.
type CacheInvalidator interface {
	Invalidate()
}

// Manager inspects and repairs the persisted records. Validation never
// mutates anything; repair rewrites the stored collections keeping only
// reconstructible records.
type Manager struct {
	gw           *storage.Gateway
	logger       *zap.Logger
	metrics      *shared.StorageMetrics
	invalidators []CacheInvalidator
}

func NewManager(gw *storage.Gateway, logger *zap.Logger, metrics *shared.StorageMetrics, invalidators ...CacheInvalidator) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{gw: gw, logger: logger, metrics: metrics, invalidators: invalidators}
}

type EntityReport struct {
	Entity string   `json:"entity"`
	Valid  bool     `json:"valid"`
	Total  int      `json:"total"`
	Errors []string `json:"errors"`
}

type Report struct {
	Valid     bool           `json:"valid"`
	CheckedAt time.Time      `json:"checkedAt"`
	Entities  []EntityReport `json:"entities"`
}

// ValidateDataIntegrity checks every stored record without touching the
// stored data.
func (m *Manager) ValidateDataIntegrity(ctx context.Context) Report {
	report := Report{Valid: true, CheckedAt: time.Now().UTC()}

	tasks, taskReport := m.checkTasks()
	report.Entities = append(report.Entities, taskReport)

	projects, projectReport := m.checkProjects()

	// Cross-entity check: every task must point at a known project.
	known := map[string]bool{models.DefaultProjectID: true}
	for _, project := range projects {
		known[project.ID] = true
	}
	for _, task := range tasks {
		if !known[task.ProjectID] {
			taskErr := fmt.Sprintf("task %s references unknown project %s", task.ID, task.ProjectID)
			projectReport.Errors = append(projectReport.Errors, taskErr)
			projectReport.Valid = false
		}
	}

	report.Entities = append(report.Entities, projectReport)
	report.Entities = append(report.Entities, m.checkSettings())

	for _, entity := range report.Entities {
		if !entity.Valid {
			report.Valid = false
		}
	}

	return report
}

func (m *Manager) checkTasks() ([]*models.Task, EntityReport) {
	report := EntityReport{Entity: "tasks", Valid: true, Errors: []string{}}

	var raws []json.RawMessage
	if !m.gw.Load(storage.TasksKey, &raws) {
		return nil, report
	}

	report.Total = len(raws)
	seen := map[string]bool{}
	tasks := make([]*models.Task, 0, len(raws))

	for i, raw := range raws {
		task, err := models.TaskFromRecord(raw)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if seen[task.ID] {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: duplicate task id %s", i, task.ID))
			continue
		}
		seen[task.ID] = true
		tasks = append(tasks, task)
	}

	report.Valid = len(report.Errors) == 0
	return tasks, report
}

func (m *Manager) checkProjects() ([]*models.Project, EntityReport) {
	report := EntityReport{Entity: "projects", Valid: true, Errors: []string{}}

	var raws []json.RawMessage
	if !m.gw.Load(storage.ProjectsKey, &raws) {
		return nil, report
	}

	report.Total = len(raws)
	seen := map[string]bool{}
	projects := make([]*models.Project, 0, len(raws))

	for i, raw := range raws {
		project, err := models.ProjectFromRecord(raw)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if seen[project.ID] {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: duplicate project id %s", i, project.ID))
			continue
		}
		seen[project.ID] = true
		projects = append(projects, project)
	}

	report.Valid = len(report.Errors) == 0
	return projects, report
}

func (m *Manager) checkSettings() EntityReport {
	report := EntityReport{Entity: "settings", Valid: true, Errors: []string{}}

	var settings models.Settings
	if !m.gw.Load(storage.SettingsKey, &settings) {
		return report
	}

	report.Total = 1

	if settings.CurrentProjectID == "" {
		report.Errors = append(report.Errors, "settings: current project id is empty")
		report.Valid = false
	}

	return report
}

type RepairResult struct {
	RemovedTasks    int  `json:"removedTasks"`
	RemovedProjects int  `json:"removedProjects"`
	ReassignedTasks int  `json:"reassignedTasks"`
	SettingsReset   bool `json:"settingsReset"`
}

// RepairData rewrites each collection keeping only records that still
// reconstruct, deduplicating ids and reassigning tasks whose project no
// longer exists to the default project.
func (m *Manager) RepairData(ctx context.Context) (RepairResult, error) {
	result := RepairResult{}

	tasks, taskReport := m.checkTasks()
	projects, projectReport := m.checkProjects()

	known := map[string]bool{models.DefaultProjectID: true}
	for _, project := range projects {
		known[project.ID] = true
	}

	for _, task := range tasks {
		if !known[task.ProjectID] {
			task.ProjectID = models.DefaultProjectID
			result.ReassignedTasks++
		}
	}

	result.RemovedTasks = taskReport.Total - len(tasks)
	result.RemovedProjects = projectReport.Total - len(projects)

	if result.RemovedTasks > 0 || result.ReassignedTasks > 0 {
		if err := m.gw.Save(storage.TasksKey, tasks); err != nil {
			return RepairResult{}, err
		}
		m.metrics.RecordRepairedRecords("task", result.RemovedTasks)
	}

	if result.RemovedProjects > 0 {
		if err := m.gw.Save(storage.ProjectsKey, projects); err != nil {
			return RepairResult{}, err
		}
		m.metrics.RecordRepairedRecords("project", result.RemovedProjects)
	}

	settingsReport := m.checkSettings()
	if !settingsReport.Valid {
		if err := m.gw.Save(storage.SettingsKey, models.DefaultSettings()); err != nil {
			return RepairResult{}, err
		}
		result.SettingsReset = true
	}

	m.invalidateCaches()

	m.logger.Info("integrity repair finished",
		zap.Int("removed_tasks", result.RemovedTasks),
		zap.Int("removed_projects", result.RemovedProjects),
		zap.Int("reassigned_tasks", result.ReassignedTasks),
		zap.Bool("settings_reset", result.SettingsReset),
	)

	return result, nil
}

// ForceRecovery wipes the whole vault and reseeds the minimal state:
// empty collections, the default project, default settings. Last resort
// when repair cannot produce a usable dataset.
func (m *Manager) ForceRecovery(ctx context.Context) error {
	if err := m.gw.ForceReset(); err != nil {
		return err
	}

	if err := m.gw.Save(storage.TasksKey, []*models.Task{}); err != nil {
		return err
	}
	if err := m.gw.Save(storage.ProjectsKey, []*models.Project{models.NewDefaultProject()}); err != nil {
		return err
	}
	if err := m.gw.Save(storage.SettingsKey, models.DefaultSettings()); err != nil {
		return err
	}

	m.invalidateCaches()

	m.logger.Warn("force recovery completed, vault reseeded")
	return nil
}

func (m *Manager) invalidateCaches() {
	for _, invalidator := range m.invalidators {
		invalidator.Invalidate()
	}
}

// Run validates the vault on a fixed interval until the context ends.
// Findings are logged; repair stays an explicit operation.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := m.ValidateDataIntegrity(ctx)
			if !report.Valid {
				m.logger.Warn("periodic integrity check found problems",
					zap.Any("report", report))
			}
		}
	}
}
