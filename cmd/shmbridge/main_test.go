package main

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/shmbridge/internal/config"
	"github.com/ekisa-team/shmbridge/internal/ipc"
	"github.com/ekisa-team/shmbridge/internal/worker"
)

func TestOnReload(t *testing.T) {
	seg, err := ipc.NewSegment(make([]byte, ipc.SegmentSize))
	require.NoError(t, err)

	var wkRef atomic.Pointer[worker.Worker]
	reload := onReload(&wkRef)

	// Reloads may fire before the worker exists; they must be ignored.
	reload(&config.Config{Generation: config.GenerationConfig{MaxTokens: 128}}, nil)

	wk := worker.New(seg, &ipc.SemaphoreSet{}, nil, 4096)
	wkRef.Store(wk)

	reload(&config.Config{Generation: config.GenerationConfig{MaxTokens: 128}}, nil)
	assert.Equal(t, 128, wk.MaxTokens())

	reload(&config.Config{Generation: config.GenerationConfig{MaxTokens: 1}}, errors.New("invalid config"))
	assert.Equal(t, 128, wk.MaxTokens(), "failed reloads leave the budget unchanged")
}
