package core

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompactor struct {
	StockLedger
	calls atomic.Int32
	err   error
}

func (f *fakeCompactor) CompactAll(context.Context) (int, error) {
	f.calls.Add(1)
	return 3, f.err
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if l.held {
		return nil, ErrLockHeld
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSnapshotWorker_RunOnceWithoutLocker(t *testing.T) {
	stock := &fakeCompactor{}
	w := NewSnapshotWorker(stock, nil, time.Minute, quietLogger())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.EqualValues(t, 1, stock.calls.Load())
}

func TestSnapshotWorker_ReleasesLock(t *testing.T) {
	stock := &fakeCompactor{}
	locker := &fakeLocker{}
	w := NewSnapshotWorker(stock, locker, time.Minute, quietLogger())

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, stock.calls.Load())
	assert.Equal(t, 2, locker.released)
	assert.False(t, locker.held)
}

func TestSnapshotWorker_SkipsWhenLockHeld(t *testing.T) {
	stock := &fakeCompactor{}
	locker := &fakeLocker{held: true}
	w := NewSnapshotWorker(stock, locker, time.Minute, quietLogger())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, stock.calls.Load())
}

func TestSnapshotWorker_PropagatesCompactionError(t *testing.T) {
	boom := errors.New("boom")
	locker := &fakeLocker{}
	w := NewSnapshotWorker(&fakeCompactor{err: boom}, locker, time.Minute, quietLogger())

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, locker.released)
}

func TestSnapshotWorker_RunStopsOnCancel(t *testing.T) {
	stock := &fakeCompactor{}
	w := NewSnapshotWorker(stock, nil, 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return stock.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
