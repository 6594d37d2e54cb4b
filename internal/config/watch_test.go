package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	path := writeFile(t, "config.yaml", "strict-typing: false\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type reload struct {
		cfg *Config
		err error
	}
	reloads := make(chan reload, 10)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, path, func(cfg *Config, err error) {
			reloads <- reload{cfg, err}
		})
	}()

	//wait for the watcher to be registered
	time.Sleep(100 * time.Millisecond)

	t.Run("the file is reloaded after a write", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("strict-typing: true\nlog-level: info\n"), 0o600))

		select {
		case r := <-reloads:
			require.NoError(t, r.err)
			assert.True(t, r.cfg.StrictTyping)
		case <-time.After(5 * time.Second):
			assert.FailNow(t, "the configuration was not reloaded")
		}
	})

	t.Run("invalid content", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("log-level: loud\n"), 0o600))

		select {
		case r := <-reloads:
			assert.ErrorIs(t, r.err, ErrInvalidConfig)
		case <-time.After(5 * time.Second):
			assert.FailNow(t, "the configuration was not reloaded")
		}
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		assert.FailNow(t, "Watch did not return")
	}
}
