package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/store"
)

type recordingAdopter struct {
	adopted []string
}

func (r *recordingAdopter) Adopt(id string) { r.adopted = append(r.adopted, id) }

type stubLister struct {
	recs []store.Record
	err  error
}

func (s stubLister) List(_ context.Context, limit int) ([]store.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.recs) {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

func TestAdoptSession(t *testing.T) {
	ctx := context.Background()
	lister := stubLister{recs: []store.Record{{SessionID: "review-new"}, {SessionID: "review-old"}}}

	t.Run("empty adopts nothing", func(t *testing.T) {
		a := &recordingAdopter{}
		require.NoError(t, adoptSession(ctx, a, lister, ""))
		assert.Empty(t, a.adopted)
	})

	t.Run("explicit id", func(t *testing.T) {
		a := &recordingAdopter{}
		require.NoError(t, adoptSession(ctx, a, lister, "review-abc"))
		assert.Equal(t, []string{"review-abc"}, a.adopted)
	})

	t.Run("latest uses newest record", func(t *testing.T) {
		a := &recordingAdopter{}
		require.NoError(t, adoptSession(ctx, a, lister, adoptLatest))
		assert.Equal(t, []string{"review-new"}, a.adopted)
	})

	t.Run("latest with empty store", func(t *testing.T) {
		a := &recordingAdopter{}
		require.NoError(t, adoptSession(ctx, a, stubLister{}, adoptLatest))
		assert.Empty(t, a.adopted)
	})

	t.Run("store error", func(t *testing.T) {
		a := &recordingAdopter{}
		err := adoptSession(ctx, a, stubLister{err: errors.New("disk gone")}, adoptLatest)
		assert.ErrorContains(t, err, "disk gone")
		assert.Empty(t, a.adopted)
	})
}
