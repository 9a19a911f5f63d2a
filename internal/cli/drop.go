package cli

import (
	"fmt"

	"github.com/bcomnes/dagrator/internal/config"
)

// DropSchema drops the bookkeeping table. The migrated schema is left as is.
type DropSchema struct{}

// Run the drop-schema command.
func (c *DropSchema) Run(appCtx *Context, cfg *config.Config) error {
	adapter, err := openAdapter(appCtx, cfg)
	if err != nil {
		return err
	}
	defer adapter.DB().Close()

	fmt.Fprintf(appCtx.Stdout, "[%s] Dropping schema table %s...\n", appCtx.now(), adapter.QuotedSchemaTable())
	if err = adapter.DropTable(appCtx.Ctx); err != nil {
		return fmt.Errorf("failed dropping schema table: %w", err)
	}
	fmt.Fprintf(appCtx.Stdout, "[%s] Schema table dropped.\n", appCtx.now())

	return nil
}
