package definitions

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

// Hooks are the engine callbacks the sync drives (de)activation and
// run-on-install through, the same paths used by manual registration.
type Hooks struct {
	Activate   func(automation *models.Automation)
	Deactivate func(id string)
	RunNow     func(automation *models.Automation)
}

// Sync scans and watches directories of definition files and reconciles them
// into the registry, preserving runtime state across config updates.
type Sync struct {
	registry *registry.Registry
	hooks    Hooks
	validate *validator.Validate
	logger   *slog.Logger

	mu   sync.Mutex
	dirs []string
	fsw  *watcher
}

func NewSync(reg *registry.Registry, hooks Hooks, logger *slog.Logger) *Sync {
	return &Sync{
		registry: reg,
		hooks:    hooks,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("module", "definition_sync"),
	}
}

// SetDirectories replaces the watched directory set, rescans, and restarts
// the incremental watcher.
func (s *Sync) SetDirectories(ctx context.Context, dirs []string) error {
	s.mu.Lock()
	s.dirs = append([]string(nil), dirs...)
	s.mu.Unlock()

	s.Rescan(ctx)

	return s.restartWatcher(ctx, dirs)
}

// Directories returns the current watched directory set.
func (s *Sync) Directories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.dirs...)
}

// Rescan walks every watched directory, reconciles each definition file, and
// unregisters definition-origin automations whose backing file disappeared.
// Per-file failures are logged, never returned: one broken definition must
// not block the rest.
func (s *Sync) Rescan(ctx context.Context) {
	seen := make(map[string]struct{})

	for _, dir := range s.Directories() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("Scan error", "path", path, "error", err)

				return nil
			}

			if d.IsDir() || !IsDefinitionFile(path) {
				return nil
			}

			seen[DeriveID(path)] = struct{}{}
			s.Reconcile(ctx, path)

			return nil
		})
		if err != nil {
			s.logger.Warn("Failed to walk definitions directory", "dir", dir, "error", err)
		}
	}

	s.sweep(seen)
}

// Reconcile parses one definition file and applies it to the registry.
func (s *Sync) Reconcile(_ context.Context, path string) {
	logger := s.logger.With("path", path)

	def, err := ParseFile(s.validate, path)
	if err != nil {
		logger.Warn("Skipping invalid definition file", "error", err)

		return
	}

	config, err := def.Config()
	if err != nil {
		logger.Warn("Skipping definition with invalid config", "error", err)

		return
	}

	id := DeriveID(path)

	existing, err := s.registry.Get(id)
	if err == nil {
		if existing.Origin != models.OriginDefinition {
			// Identity collision with an automation owned elsewhere; the
			// earlier owner wins and the definition is skipped.
			logger.Warn("Definition id collides with existing automation, skipping",
				"id", id, "origin", existing.Origin)

			return
		}

		s.update(existing, def, config, logger)

		return
	}

	s.install(id, path, def, config, logger)
}

// update applies a changed definition to an existing definition-origin
// automation, preserving its runtime fields. The user's in-app enabled
// toggle wins over the file's enabled value after first registration.
func (s *Sync) update(existing *models.Automation, def *Definition, config *models.AutomationConfig, logger *slog.Logger) {
	s.hooks.Deactivate(existing.ID)

	updated, err := s.registry.Update(existing.ID, registry.UpdateRequest{
		Name:        &def.Name,
		Description: &def.Description,
		Config:      config,
	})
	if err != nil {
		logger.Warn("Failed to update automation from definition", "id", existing.ID, "error", err)

		return
	}

	if updated.Enabled {
		s.hooks.Activate(updated)
	}

	logger.Info("Updated automation from definition", "id", existing.ID)
}

// install registers a freshly discovered definition and, when it declares
// run-on-install and is enabled, fires it immediately, independent of any
// trigger evaluation.
func (s *Sync) install(id, path string, def *Definition, config *models.AutomationConfig, logger *slog.Logger) {
	automation := &models.Automation{
		ID:           id,
		Name:         def.Name,
		Description:  def.Description,
		Config:       *config,
		Enabled:      config.Enabled,
		Origin:       models.OriginDefinition,
		SourcePath:   path,
		SourceFormat: SourceFormat,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.registry.Register(automation); err != nil {
		logger.Warn("Failed to register automation from definition", "id", id, "error", err)

		return
	}

	if automation.Enabled {
		s.hooks.Activate(automation)

		if automation.Config.RunOnInstall {
			s.hooks.RunNow(automation)
		}
	}

	logger.Info("Registered automation from definition", "id", id, "name", def.Name)
}

// Remove handles a deleted or renamed-away definition file.
func (s *Sync) Remove(path string) {
	id := DeriveID(path)

	existing, err := s.registry.Get(id)
	if err != nil || existing.Origin != models.OriginDefinition {
		return
	}

	s.hooks.Deactivate(id)
	s.registry.Unregister(id)
	s.logger.Info("Removed automation for deleted definition", "id", id, "path", path)
}

// sweep unregisters definition-origin automations whose file vanished
// between scans.
func (s *Sync) sweep(seen map[string]struct{}) {
	for _, automation := range s.registry.All() {
		if automation.Origin != models.OriginDefinition {
			continue
		}

		if _, ok := seen[automation.ID]; ok {
			continue
		}

		s.hooks.Deactivate(automation.ID)
		s.registry.Unregister(automation.ID)
		s.logger.Info("Removed automation with missing definition file",
			"id", automation.ID, "path", automation.SourcePath)
	}
}

// Close stops the incremental watcher.
func (s *Sync) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fsw == nil {
		return nil
	}

	err := s.fsw.close()
	s.fsw = nil

	return err
}
