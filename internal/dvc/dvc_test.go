package dvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
	"github.com/quarry-io/quarry/internal/resilience"
)

func newTestRetryer(maxAttempts int) *resilience.Retryer {
	return resilience.NewRetryer(resilience.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
		RetryableKinds: map[qerrors.Kind]bool{
			qerrors.KindTransient: true,
		},
	}, zap.NewNop(), nil)
}

func stubRunCommand(t *testing.T, fn func(op string, args ...string) (string, error)) *int {
	t.Helper()
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })

	calls := new(int)
	runCommand = func(ctx context.Context, op, dir string, args ...string) (string, error) {
		*calls++
		return fn(op, args...)
	}
	return calls
}

func TestListRetriesTransientFailures(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })

	attempts := 0
	runCommand = func(ctx context.Context, op, dir string, args ...string) (string, error) {
		attempts++
		if attempts < 3 {
			return "", qerrors.New(op, qerrors.KindTransient, "connection timed out")
		}
		return `[{"path":"images/cat.png","isdir":false,"size":12,"md5":"abc"}]`, nil
	}

	r := NewRunner(S3Config{}, zap.NewNop())
	r.SetRetryer(newTestRetryer(3))

	records, err := r.List(context.Background(), "http://host/acme/ds.git", "v1", "data", true)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, records, 1)
	assert.Equal(t, "/data/images/cat.png", records[0].Path)
	assert.Equal(t, model.EntryFile, records[0].Type)
	assert.Equal(t, int64(12), records[0].Size)
}

func TestListWithoutRetryerFailsOnFirstAttempt(t *testing.T) {
	calls := stubRunCommand(t, func(op string, args ...string) (string, error) {
		return "", qerrors.New(op, qerrors.KindTransient, "connection refused")
	})

	r := NewRunner(S3Config{}, zap.NewNop())

	_, err := r.List(context.Background(), "http://host/acme/ds.git", "v1", "", false)
	require.Error(t, err)
	assert.Equal(t, 1, *calls)
}

func TestPushRetriesTransientFailures(t *testing.T) {
	calls := stubRunCommand(t, func(op string, args ...string) (string, error) {
		return "", qerrors.New(op, qerrors.KindTransient, "upload timed out")
	})

	r := NewRunner(S3Config{}, zap.NewNop())
	r.SetRetryer(newTestRetryer(3))

	err := r.Attach(t.TempDir()).Push(context.Background())
	require.Error(t, err)
	assert.Equal(t, qerrors.KindTransient, qerrors.KindOf(err))
	assert.Equal(t, 3, *calls)
}

func TestTrackDoesNotRetry(t *testing.T) {
	calls := stubRunCommand(t, func(op string, args ...string) (string, error) {
		return "", qerrors.New(op, qerrors.KindInternal, "output 'data' already tracked")
	})

	r := NewRunner(S3Config{}, zap.NewNop())
	r.SetRetryer(newTestRetryer(3))

	err := r.Attach(t.TempDir()).Track(context.Background(), "data")
	require.Error(t, err)
	assert.Equal(t, 1, *calls)
}

func TestClassify(t *testing.T) {
	base := assert.AnError

	tests := []struct {
		name   string
		stderr string
		want   qerrors.Kind
	}{
		{"connection failure", "ERROR: failed to push data to the cloud - connection reset by peer", qerrors.KindTransient},
		{"timeout", "ERROR: request timed out", qerrors.KindTransient},
		{"unknown failure", "ERROR: unable to find DVC file", qerrors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("dvc.push", base, tt.stderr)
			assert.Equal(t, tt.want, qerrors.KindOf(err))
		})
	}
}
