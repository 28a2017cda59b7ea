package cronrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunnerLogsFailedJobs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(zap.New(core), context.Background())

	var runs atomic.Int32
	_, err := r.Add("stats", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return errors.New("store closed")
	})
	require.NoError(t, err)

	r.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	r.Stop()

	failed := logs.FilterMessage("cron job failed").All()
	require.NotEmpty(t, failed)
	assert.Equal(t, "stats", failed[0].ContextMap()["job"])
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Add("bad", "every now and then", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestJobsSeeBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	r := New(nil, base)

	got := make(chan any, 1)
	_, err := r.Add("ctx", "@every 1s", func(ctx context.Context) error {
		select {
		case got <- ctx.Value(key{}):
		default:
		}
		return nil
	})
	require.NoError(t, err)
	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		assert.Equal(t, "base", v)
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
}
