package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/longkey1/chatline/internal/version"
	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name  string
		short bool
		want  string
	}{
		{name: "full", short: false, want: version.Info()},
		{name: "short", short: true, want: version.Short()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			versionCmd.SetOut(&out)
			versionShort = tt.short
			t.Cleanup(func() {
				versionCmd.SetOut(nil)
				versionShort = false
			})

			versionCmd.Run(versionCmd, nil)

			assert.Equal(t, tt.want, strings.TrimSuffix(out.String(), "\n"))
		})
	}
}

func TestVersionInfoNamesChatline(t *testing.T) {
	assert.True(t, strings.HasPrefix(version.Info(), "chatline "))
	assert.Contains(t, versionCmd.Short, "chatline")
}
