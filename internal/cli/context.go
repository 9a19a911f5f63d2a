package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Context contains the objects shared by every command, so that commands do
// not depend on the process environment directly.
type Context struct {
	Ctx      context.Context // global context
	FS       vfs.FileSystem  // filesystem for configuration and migration files
	Logger   *slog.Logger
	LogLevel *slog.LevelVar // set from --log-level when not nil
	TimeNow  func() time.Time

	// Standard streams
	Stdout io.Writer
	Stderr io.Writer
}

func (c *Context) now() string {
	if c.TimeNow == nil {
		return time.Now().Format(time.Kitchen)
	}
	return c.TimeNow().Format(time.Kitchen)
}
