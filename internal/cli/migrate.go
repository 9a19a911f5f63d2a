package cli

import (
	"fmt"

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/internal/config"
	"github.com/bcomnes/dagrator/sqladapter"
)

// Migrate applies migrations.
type Migrate struct {
	Target string `arg:"" optional:"" help:"Migration ID (or unique prefix) to migrate to, or 'all'."`
	Before bool   `help:"Stop just before the target: apply its dependencies only."`
}

// Run the migrate command.
func (c *Migrate) Run(appCtx *Context, cfg *config.Config) error {
	s, err := openSession(appCtx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	target, err := parseTarget(s.files, c.Target, c.Before)
	if err != nil {
		return err
	}

	if err = s.ensureTable(appCtx, cfg); err != nil {
		return err
	}
	if cfg.Checksums() {
		if err = s.adapter.ValidateChecksums(appCtx.Ctx, s.migrations()); err != nil {
			return err
		}
	}

	fmt.Fprintf(appCtx.Stdout, "[%s] Starting migration to %s...\n", appCtx.now(), target)
	res, err := s.migrator.ApplyTo(appCtx.Ctx, target)
	s.report(appCtx, "Applied", res)

	return runError(err, res)
}

// Down reverts migrations.
type Down struct {
	Target string `arg:"" optional:"" help:"Migration ID (or unique prefix) to revert to, or 'all'."`
	Before bool   `help:"Revert the target too, not only its dependents."`
}

// Run the down command.
func (c *Down) Run(appCtx *Context, cfg *config.Config) error {
	s, err := openSession(appCtx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	target, err := parseTarget(s.files, c.Target, c.Before)
	if err != nil {
		return err
	}

	fmt.Fprintf(appCtx.Stdout, "[%s] Rolling back to %s...\n", appCtx.now(), revertLabel(target))
	res, err := s.migrator.RevertTo(appCtx.Ctx, target)
	s.report(appCtx, "Rolled back", res)

	return runError(err, res)
}

// revertLabel describes where a revert ends.
func revertLabel(t dagrator.Target) string {
	if t.Kind == dagrator.TargetAll {
		return "an empty schema"
	}
	return t.String()
}

// ensureTable creates or upgrades the bookkeeping table while holding the
// migration lock, so concurrent runs do not race to create it.
func (s *session) ensureTable(appCtx *Context, cfg *config.Config) error {
	unlock, err := s.adapter.Lock(appCtx.Ctx)
	if err != nil {
		return fmt.Errorf("failed acquiring migration lock: %w", err)
	}
	defer unlock()

	if err = s.adapter.EnsureTable(appCtx.Ctx); err != nil {
		return fmt.Errorf("failed preparing %s: %w", cfg.SchemaTable, err)
	}
	return nil
}

// report prints the steps a run completed.
func (s *session) report(appCtx *Context, verb string, res *dagrator.Result[sqladapter.Migration]) {
	if res == nil || res.Plan == nil && res.State != dagrator.StateCompleted {
		return
	}
	if len(res.Plan) == 0 {
		fmt.Fprintf(appCtx.Stdout, "[%s] Nothing to do.\n", appCtx.now())
		return
	}
	fmt.Fprintf(appCtx.Stdout, "[%s] %s %d of %d migration(s):\n",
		appCtx.now(), verb, len(res.Completed), len(res.Plan))
	for _, step := range res.Completed {
		m := step.Migration
		fmt.Fprintf(appCtx.Stdout, "  - %s: %s (%s)\n", m.ID(), m.Description(), s.file(m.ID()))
	}
}

// runError adds the progress of a failed run to err.
func runError(err error, res *dagrator.Result[sqladapter.Migration]) error {
	if err == nil || res == nil || res.Failed == nil {
		return err
	}
	return withFields(err,
		"failed", res.Failed.Migration.ID(),
		"completed", len(res.Completed),
		"remaining", len(res.Remaining))
}
