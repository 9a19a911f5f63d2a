package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcomnes/dagrator/internal/config"
)

// List prints every migration in the order it would be applied.
type List struct{}

// Run the list command.
func (c *List) Run(appCtx *Context, cfg *config.Config) error {
	s, err := openSession(appCtx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.migrator.Status(appCtx.Ctx)
	if err != nil {
		return err
	}
	records, err := s.adapter.Records(appCtx.Ctx)
	if err != nil {
		return err
	}
	runAt := make(map[uuid.UUID]time.Time, len(records))
	for _, r := range records {
		runAt[r.ID] = r.RunAt
	}

	for _, id := range st.Unregistered {
		appCtx.Logger.Warn("applied migration has no migration file", "id", id)
	}

	applied := 0
	data := make([][]string, 0, len(st.Migrations))
	for _, e := range st.Migrations {
		m := e.Migration
		state := "no"
		if e.Applied {
			applied++
			state = "yes"
			if t := runAt[m.ID()]; !t.IsZero() {
				state = t.Local().Format(time.DateTime)
			}
		}
		data = append(data, []string{
			m.ID().String(),
			m.Description(),
			shortIDs(m.Dependencies()),
			state,
		})
	}

	if len(data) > 0 {
		if err = renderTable([]string{"ID", "Description", "Depends", "Applied"}, data, appCtx.Stdout); err != nil {
			return fmt.Errorf("failed rendering migrations: %w", err)
		}
	}
	_, err = fmt.Fprintf(appCtx.Stdout, "%d of %d migration(s) applied.\n", applied, len(st.Migrations))

	return err
}

// shortIDs abbreviates ids to their first eight characters.
func shortIDs(ids []uuid.UUID) string {
	short := make([]string, len(ids))
	for i, id := range ids {
		short[i] = id.String()[:8]
	}
	return strings.Join(short, ", ")
}
