package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	conf := Load()

	assert.Equal(t, 3001, conf.HTTPServer.Port)
	assert.Equal(t, "TEXT", conf.Logger.Output)
	assert.False(t, conf.APIOnly)

	assert.Equal(t, uint64(10), conf.Workflow.FetchRetries)
	assert.Equal(t, time.Second, conf.Workflow.FetchRetryDelay)
	assert.Equal(t, 5*time.Second, conf.Workflow.RefundSettleDelay)
	assert.Equal(t, 2*time.Second, conf.Workflow.ReconnectDelay)
	assert.Equal(t, 30*time.Second, conf.Workflow.RPCTimeout)
	assert.Equal(t, 27*24*time.Hour, conf.Workflow.RefundWindow)
	assert.Equal(t, 24*time.Hour, conf.Workflow.RefundSweepInterval)
}
