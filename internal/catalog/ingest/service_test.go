package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbcatalog/config"
	"wbcatalog/internal/catalog/storage"
	wbmodels "wbcatalog/internal/wildberries/models"
	"wbcatalog/pkg/logger"
)

func newTestService(fetcher PageFetcher, store ProductStore) *Service {
	p := NewPipeline(fetcher, fakeNormalizer{}, store, testOptions(), logger.NewNop())
	return NewService(p, 5, logger.NewNop())
}

func TestIngestRejectsInvalidRequests(t *testing.T) {
	s := newTestService(&fakeFetcher{}, &fakeStore{})

	for name, req := range map[string]Request{
		"empty query":    {Query: "   "},
		"unknown policy": {Query: "q", Policy: "merge"},
		"negative pages": {Query: "q", Pages: -1},
		"too many pages": {Query: "q", Pages: 6},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Ingest(context.Background(), req)
			assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestIngestDefaultsToOnePage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]wbmodels.RawRecord{1: records(1)}}
	s := newTestService(fetcher, &fakeStore{})

	result, err := s.Ingest(context.Background(), Request{Query: " ноутбук "})
	require.NoError(t, err)
	assert.Equal(t, "ноутбук", result.Query)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, config.PolicySkip, result.Policy)
}

func TestIngestPolicyOverride(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]wbmodels.RawRecord{1: records(1)}}
	s := newTestService(fetcher, &fakeStore{})

	result, err := s.Ingest(context.Background(), Request{Query: "q", Policy: config.PolicyOverwrite})
	require.NoError(t, err)
	assert.Equal(t, config.PolicyOverwrite, result.Policy)

	// политика не "прилипает" к сервису
	result, err = s.Ingest(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, config.PolicySkip, result.Policy)
}

func TestIngestIsBusyWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &fakeFetcher{
		pages: map[int][]wbmodels.RawRecord{1: records(1)},
		onPage: func(int) {
			close(started)
			<-release
		},
	}
	s := newTestService(fetcher, &fakeStore{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Ingest(context.Background(), Request{Query: "first"})
		done <- err
	}()
	<-started

	_, err := s.Ingest(context.Background(), Request{Query: "second"})
	assert.True(t, errors.Is(err, ErrBusy))

	close(release)
	require.NoError(t, <-done)
}

type fakeRecorder struct {
	runs []storage.RunRecord
	err  error
}

func (r *fakeRecorder) Record(ctx context.Context, run storage.RunRecord) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.runs = append(r.runs, run)
	return int64(len(r.runs)), nil
}

func TestIngestRecordsRuns(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]wbmodels.RawRecord{1: records(1, 2)}}
	s := newTestService(fetcher, &fakeStore{})
	recorder := &fakeRecorder{}
	s.SetRecorder(recorder)

	_, err := s.Ingest(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	// невалидный запрос в журнал не попадает
	_, err = s.Ingest(context.Background(), Request{Query: ""})
	require.Error(t, err)

	require.Len(t, recorder.runs, 1)
	run := recorder.runs[0]
	assert.Equal(t, "q", run.Query)
	assert.Equal(t, 2, run.Saved)
	assert.Empty(t, run.Error)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestIngestRecorderFailureDoesNotFailRun(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]wbmodels.RawRecord{1: records(1)}}
	s := newTestService(fetcher, &fakeStore{})
	s.SetRecorder(&fakeRecorder{err: errors.New("disk full")})

	result, err := s.Ingest(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
}
