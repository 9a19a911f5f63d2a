package cli

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/sqlfile"
)

func TestParseTarget(t *testing.T) {
	var files []*sqlfile.Migration
	for _, id := range []string{id1, id2, "0190f2a2-0000-7000-8000-000000000000"} {
		files = append(files, &sqlfile.Migration{Meta: dagrator.NewMeta(uuid.MustParse(id), "m")})
	}

	tests := []struct {
		arg     string
		before  bool
		want    dagrator.Target
		wantErr string
	}{
		{arg: "", want: dagrator.All},
		{arg: "ALL", want: dagrator.All},
		{arg: "all", before: true, wantErr: "--before requires"},
		{arg: id2, want: dagrator.To(uuid.MustParse(id2))},
		{arg: id2, before: true, want: dagrator.Before(uuid.MustParse(id2))},
		{arg: "0190F2A2", want: dagrator.To(uuid.MustParse("0190f2a2-0000-7000-8000-000000000000"))},
		{arg: "0190f2a1", wantErr: "ambiguous"},
		{arg: "abc", wantErr: "no migration matches"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseTarget(files, tt.arg, tt.before)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLDriverName(t *testing.T) {
	for driver, want := range map[string]string{
		"pg":       "pgx",
		"postgres": "pgx",
		"pgx":      "pgx",
		"sqlite":   "sqlite3",
		"sqlite3":  "sqlite3",
	} {
		assert.Equal(t, want, sqlDriverName(driver), driver)
	}
}
