package cli

import (
	"fmt"
	"strconv"

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/internal/config"
	"github.com/bcomnes/dagrator/sqladapter"
)

// Plan prints the steps a migrate or down run would execute.
type Plan struct {
	Target string `arg:"" optional:"" help:"Migration ID (or unique prefix), or 'all'."`
	Down   bool   `help:"Plan a revert instead of a migration."`
	Before bool   `help:"Stop just before the target when migrating, or include it when reverting."`
}

// Run the plan command.
func (c *Plan) Run(appCtx *Context, cfg *config.Config) error {
	s, err := openSession(appCtx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	target, err := parseTarget(s.files, c.Target, c.Before)
	if err != nil {
		return err
	}

	var plan dagrator.Plan[sqladapter.Migration]
	if c.Down {
		plan, err = s.migrator.PlanRevert(appCtx.Ctx, target)
	} else {
		plan, err = s.migrator.PlanApply(appCtx.Ctx, target)
	}
	if err != nil {
		return err
	}

	if len(plan) == 0 {
		_, err = fmt.Fprintln(appCtx.Stdout, "Nothing to do.")
		return err
	}

	data := make([][]string, 0, len(plan))
	for i, step := range plan {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			step.Direction.String(),
			step.Migration.ID().String(),
			step.Migration.Description(),
		})
	}
	if err = renderTable([]string{"Step", "Direction", "ID", "Description"}, data, appCtx.Stdout); err != nil {
		return fmt.Errorf("failed rendering plan: %w", err)
	}

	return nil
}
