package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRelaunchArgs_AddsWaitForLockOnce(t *testing.T) {
	assert.Equal(t, []string{WaitForLockFlag}, relaunchArgs(nil))
	assert.Equal(t,
		[]string{"--config", "/etc/racingplus.toml", WaitForLockFlag},
		relaunchArgs([]string{"--config", "/etc/racingplus.toml", WaitForLockFlag}))
}

func TestAppController_QuitOnce(t *testing.T) {
	calls := 0
	c := NewAppController(func() { calls++ }, nil, zap.NewNop())

	c.Quit()
	c.Quit()
	assert.Equal(t, 1, calls)
}
