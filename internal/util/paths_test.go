package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("HELMSMAN_TEST_DIR", "/srv/helmsman")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "tilde only", input: "~", want: homeDir},
		{name: "tilde prefix", input: "~/events.db", want: filepath.Join(homeDir, "events.db")},
		{name: "nested under tilde", input: "~/.helmsman/config.yaml", want: filepath.Join(homeDir, ".helmsman", "config.yaml")},
		{name: "env var", input: "$HELMSMAN_TEST_DIR/data", want: "/srv/helmsman/data"},
		{name: "braced env var", input: "${HELMSMAN_TEST_DIR}/data", want: "/srv/helmsman/data"},
		{name: "absolute untouched", input: "/var/lib/helmsman", want: "/var/lib/helmsman"},
		{name: "cleaned", input: "/var//lib/../lib/helmsman", want: "/var/lib/helmsman"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandPath_TildeInsidePathIsLiteral(t *testing.T) {
	got, err := ExpandPath("/data/~backup")
	require.NoError(t, err)
	assert.Equal(t, "/data/~backup", got)
}
