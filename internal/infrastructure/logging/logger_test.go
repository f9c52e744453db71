package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	for _, backend := range []string{"zap", "zerolog"} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "logs", "chat.log")

			l := NewLogger(&LoggerConfig{FilePath: path, Encoding: "json", Level: "info", Logger: backend})
			l.Info(Chat, Join, "joined", map[ExtraKey]any{TicketID: "t1"})
			l.Debug(Chat, Join, "hidden below level", nil)
			require.NoError(t, l.Sync())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"TicketId":"t1"`)
			assert.Contains(t, string(raw), `"Category":"Chat"`)
			assert.NotContains(t, string(raw), "hidden below level")
		})
	}
}

func TestNewLoggerRejectsUnknownBackend(t *testing.T) {
	assert.Panics(t, func() {
		NewLogger(&LoggerConfig{Logger: "logrus"})
	})
}
