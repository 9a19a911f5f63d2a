package sqlfile

import (
	"bufio"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/bcomnes/dagrator"
)

// Config holds the settings for loading and creating migration files.
type Config struct {
	// MigrationPattern is the glob pattern for migration files (e.g. "migrations/*.sql").
	// Only the file name part may contain wildcards.
	MigrationPattern string

	// Newline is the newline style ("LF", "CR" or "CRLF") content is converted
	// to before checksumming, so checksums survive checkouts with different
	// line endings. Empty means checksum the file as is.
	Newline string
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	MigrationPattern: "migrations/*.sql",
}

// Load reads the migrations matching cfg.MigrationPattern from the OS
// filesystem.
func Load(cfg Config) ([]*Migration, error) {
	return LoadFS(osfs.New(), cfg)
}

// glob matches pattern against the files of its directory.
func glob(fs vfs.FileSystem, pattern string) ([]string, error) {
	dir, filePattern := filepath.Dir(pattern), filepath.Base(pattern)
	if _, err := filepath.Match(filePattern, ""); err != nil {
		return nil, err
	}
	entries, err := vfs.ReadDir(fs, dir)
	if err != nil {
		if vfs.IsErrNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(filePattern, e.Name()); ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

type fileName struct {
	id     uuid.UUID
	action string
	name   string
}

// parseFileName splits "<uuid>.<action>[.<name>].sql".
func parseFileName(path string) (fileName, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".sql" {
		return fileName{}, false
	}
	parts := strings.Split(strings.TrimSuffix(base, ext), ".")
	if len(parts) < 2 {
		// Skip files that do not match id.action[.name]
		return fileName{}, false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return fileName{}, false
	}
	action := strings.ToLower(parts[1])
	if action != "do" && action != "undo" {
		return fileName{}, false
	}
	return fileName{id: id, action: action, name: strings.Join(parts[2:], ".")}, true
}

// LoadFS reads the migrations matching cfg.MigrationPattern from fs. The
// result is sorted by ID.
func LoadFS(fs vfs.FileSystem, cfg Config) ([]*Migration, error) {
	if cfg.MigrationPattern == "" {
		cfg.MigrationPattern = DefaultConfig.MigrationPattern
	}
	files, err := glob(fs, cfg.MigrationPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration files: %w", err)
	}

	type pair struct {
		do, undo string
		fn       fileName
	}
	pairs := make(map[uuid.UUID]*pair)
	for _, file := range files {
		fn, ok := parseFileName(file)
		if !ok {
			continue
		}
		p := pairs[fn.id]
		if p == nil {
			p = &pair{fn: fn}
			pairs[fn.id] = p
		}
		slot := &p.do
		if fn.action == "undo" {
			slot = &p.undo
		}
		if *slot != "" {
			return nil, fmt.Errorf("duplicate migration for id %s and action %s", fn.id, fn.action)
		}
		*slot = file
		if fn.action == "do" {
			p.fn = fn
		}
	}

	migrations := make([]*Migration, 0, len(pairs))
	for id, p := range pairs {
		if p.do == "" {
			return nil, fmt.Errorf("undo migration %s has no do file", p.undo)
		}
		m, err := loadPair(fs, cfg, id, p.fn.name, p.do, p.undo)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	slices.SortFunc(migrations, func(a, b *Migration) int { return dagrator.CompareIDs(a.ID(), b.ID()) })
	return migrations, nil
}

func loadPair(fs vfs.FileSystem, cfg Config, id uuid.UUID, name, doFile, undoFile string) (*Migration, error) {
	doData, err := vfs.ReadFile(fs, doFile)
	if err != nil {
		return nil, err
	}
	var undoData []byte
	if undoFile != "" {
		if undoData, err = vfs.ReadFile(fs, undoFile); err != nil {
			return nil, err
		}
	}

	desc, deps, err := parseHeader(string(doData))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doFile, err)
	}
	if desc == "" {
		desc = strings.ReplaceAll(name, "-", " ")
	}
	sum, err := checksum(string(doData), cfg.Newline)
	if err != nil {
		return nil, err
	}

	return &Migration{
		Meta:     dagrator.NewMeta(id, desc, deps...),
		Name:     name,
		DoFile:   doFile,
		UndoFile: undoFile,
		doSQL:    string(doData),
		undoSQL:  string(undoData),
		md5:      sum,
	}, nil
}

// parseHeader reads the description and dependencies from the leading
// comment block.
func parseHeader(content string) (string, []uuid.UUID, error) {
	var (
		desc string
		deps []uuid.UUID
	)
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "description":
			desc = strings.TrimSpace(value)
		case "depends":
			for _, field := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
				id, err := uuid.Parse(field)
				if err != nil {
					return "", nil, fmt.Errorf("invalid dependency %q: %w", field, err)
				}
				deps = append(deps, id)
			}
		}
	}
	return desc, deps, sc.Err()
}
