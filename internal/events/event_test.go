package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geospatial/internal/models"
	"geospatial/internal/repository"
	"geospatial/internal/repository/repositorytest"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestDecode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	node := models.Node{ID: "7", Coordinates: repositorytest.BelfastCentre, Value: "me"}

	data, err := Encode(NewUpserted(node, at))
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Upserted, got.Type)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, node, *got.Node)
	assert.True(t, at.Equal(got.At))

	cases := []struct {
		name  string
		input string
	}{
		{"not json", "nope"},
		{"missing id", `{"type":"delete"}`},
		{"unknown type", `{"type":"rename","id":"1"}`},
		{"upsert without node", `{"type":"upsert","id":"1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemory()
	node := models.Node{ID: "42", Coordinates: repositorytest.BelfastCentre, Value: "me"}

	require.NoError(t, Apply(ctx, repo, NewUpserted(node, time.Now())))
	got, ok, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, node, got)

	require.NoError(t, Apply(ctx, repo, NewDeleted("42", time.Now())))
	require.NoError(t, Apply(ctx, repo, NewDeleted("42", time.Now())), "replayed delete is harmless")

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, Apply(ctx, repo, NodeEvent{Type: Upserted, ID: "1"}), ErrMalformed)
}

func TestPublishing(t *testing.T) {
	ctx := context.Background()
	w := &recordingWriter{}
	repo := NewPublishing(repository.NewInMemory(), NewKafkaPublisher(w))

	n, err := repo.Upsert(ctx, models.NewNode(repositorytest.BelfastCentre, "me"))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.Delete(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	require.Len(t, w.msgs, 2, "only effective mutations are published")
	assert.Equal(t, []byte(n.ID), w.msgs[0].Key)
	assert.Equal(t, "event-type", w.msgs[0].Headers[0].Key)

	first, err := Decode(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, Upserted, first.Type)
	assert.Equal(t, n, *first.Node)

	second, err := Decode(w.msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, Deleted, second.Type)
	assert.Equal(t, n.ID, second.ID)
}

func TestPublishing_PublishFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	w := &recordingWriter{err: errors.New("broker down")}
	inner := repository.NewInMemory()
	repo := NewPublishing(inner, NewKafkaPublisher(w))

	n, err := repo.Upsert(ctx, models.NewNode(repositorytest.BelfastCentre, "me"))
	require.NoError(t, err)

	ok, err := inner.Contains(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPublishing_ReplaysOntoReplica(t *testing.T) {
	ctx := context.Background()
	w := &recordingWriter{}
	primary := NewPublishing(repository.NewInMemory(), NewKafkaPublisher(w))
	replica := repository.NewInMemory()

	me, you, him, _, _, _ := repositorytest.BelfastNodes()
	var ids []string
	for _, node := range []models.Node{me, you, him} {
		n, err := primary.Upsert(ctx, node)
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	_, err := primary.Delete(ctx, ids[1])
	require.NoError(t, err)

	for _, msg := range w.msgs {
		e, err := Decode(msg.Value)
		require.NoError(t, err)
		require.NoError(t, Apply(ctx, replica, e))
	}

	for _, id := range []string{ids[0], ids[2]} {
		want, _, _ := primary.Get(ctx, id)
		got, ok, err := replica.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	ok, err := replica.Contains(ctx, ids[1])
	require.NoError(t, err)
	assert.False(t, ok)
}
