package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDelay(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	tests := []struct {
		name      string
		path      string
		want      time.Duration
		wantFound bool
		wantErr   bool
	}{
		{name: "missing file", path: filepath.Join(dir, "nope.tmp")},
		{name: "no path"},
		{name: "seconds", path: write("a.tmp", "12\n"), want: 12 * time.Second, wantFound: true},
		{name: "fraction", path: write("b.tmp", " 0.25 \nignored"), want: 250 * time.Millisecond, wantFound: true},
		{name: "zero", path: write("c.tmp", "0"), wantFound: true},
		{name: "negative", path: write("d.tmp", "-3"), wantFound: true},
		{name: "garbage", path: write("e.tmp", "soon"), wantFound: true, wantErr: true},
		{name: "empty", path: write("f.tmp", ""), wantFound: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := ReadDelay(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
