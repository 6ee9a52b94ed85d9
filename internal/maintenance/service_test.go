package maintenance

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/telemetry"
)

func TestParseJob(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    Job
		wantErr bool
	}{
		"reconcile": {in: "reconcile-progress", want: JobReconcileProgress},
		"cleanup":   {in: "cleanup-orphans", want: JobCleanupOrphans},
		"indexes":   {in: "ensure-indexes", want: JobEnsureIndexes},
		"unknown":   {in: "drop-everything", wantErr: true},
		"empty":     {in: "", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseJob(tc.in)
			if tc.wantErr {
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestService_Run(t *testing.T) {
	s := NewService(Config{})
	s.jobs = map[Job]jobFunc{
		JobCleanupOrphans: func(ctx context.Context) (int64, error) { return 3, nil },
		JobEnsureIndexes:  func(ctx context.Context) (int64, error) { return 0, stderrors.New("db down") },
	}

	okRuns := testutil.ToFloat64(telemetry.MaintenanceRuns.WithLabelValues(string(JobCleanupOrphans), "ok"))
	failedRuns := testutil.ToFloat64(telemetry.MaintenanceRuns.WithLabelValues(string(JobEnsureIndexes), "error"))

	r, err := s.Run(context.Background(), JobCleanupOrphans)
	require.NoError(t, err)
	assert.Equal(t, JobCleanupOrphans, r.Job)
	assert.EqualValues(t, 3, r.Affected)
	assert.Equal(t, okRuns+1, testutil.ToFloat64(telemetry.MaintenanceRuns.WithLabelValues(string(JobCleanupOrphans), "ok")))

	_, err = s.Run(context.Background(), JobEnsureIndexes)
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, failedRuns+1, testutil.ToFloat64(telemetry.MaintenanceRuns.WithLabelValues(string(JobEnsureIndexes), "error")))

	_, err = s.Run(context.Background(), JobReconcileProgress)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestService_Start(t *testing.T) {
	var reconciled, cleaned, indexed atomic.Int32

	s := NewService(Config{Interval: 50 * time.Millisecond})
	s.jobs = map[Job]jobFunc{
		JobReconcileProgress: func(ctx context.Context) (int64, error) { reconciled.Add(1); return 0, nil },
		JobCleanupOrphans:    func(ctx context.Context) (int64, error) { cleaned.Add(1); return 0, nil },
		JobEnsureIndexes:     func(ctx context.Context) (int64, error) { indexed.Add(1); return 0, nil },
	}

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return reconciled.Load() >= 2 && cleaned.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, indexed.Load(), "indexes are only ensured on demand")
}

func TestService_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan error, 1)

	s := NewService(Config{Interval: time.Hour})
	s.jobs = map[Job]jobFunc{
		JobReconcileProgress: func(ctx context.Context) (int64, error) {
			close(started)
			<-ctx.Done()
			stopped <- ctx.Err()
			return 0, ctx.Err()
		},
		JobCleanupOrphans: func(ctx context.Context) (int64, error) { return 0, nil },
	}

	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile job did not start")
	}
	s.Stop()

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("running job was not cancelled")
	}
}

func TestReconcileCourses(t *testing.T) {
	rolledBack := stderrors.New("serialization failure")
	courses := make([]courseDays, 3)
	for i := range courses {
		id, err := domain.NewID()
		require.NoError(t, err)
		courses[i] = courseDays{id: id, days: 10}
	}

	tests := map[string]struct {
		failAt  int
		changed int64
	}{
		"all committed":             {failAt: -1, changed: 6},
		"failed course not counted": {failAt: 1, changed: 2},
		"first failure counts none": {failAt: 0, changed: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var calls int
			changed, err := reconcileCourses(courses, func(c courseDays) (int, error) {
				i := calls
				calls++
				if i == tc.failAt {
					return 2, rolledBack
				}
				return 2, nil
			})

			assert.Equal(t, tc.changed, changed)
			if tc.failAt < 0 {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, rolledBack)
			assert.Contains(t, err.Error(), courses[tc.failAt].id.String())
			assert.Equal(t, tc.failAt+1, calls)
		})
	}
}
