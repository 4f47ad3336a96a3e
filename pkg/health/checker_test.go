package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCheckAllHealthy(t *testing.T) {
	c := NewChecker("memory", fakePinger{})
	status := c.CheckAll(context.Background())

	assert.True(t, status.StorageStatus.Connected)
	assert.Equal(t, StatusHealthy, status.StorageStatus.Status)
}

func TestCheckAllStorageDown(t *testing.T) {
	c := NewChecker("postgres", fakePinger{err: errors.New("connection refused")})
	status := c.CheckAll(context.Background())

	assert.False(t, status.StorageStatus.Connected)
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.NotEmpty(t, status.Errors)
}

func TestCheckAllNoPinger(t *testing.T) {
	c := NewChecker("memory", nil)
	status := c.CheckAll(context.Background())

	assert.Equal(t, StatusUnhealthy, status.StorageStatus.Status)
}
