package parse

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeExtractor struct {
	draft Draft
	err   error
}

func (f fakeExtractor) Extract(ctx context.Context, rawBlob []byte) (Draft, error) {
	return f.draft, f.err
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	sourceID := uuid.New()
	reg.Register(sourceID, fakeExtractor{draft: Draft{Title: "x"}})

	e, ok := reg.Get(sourceID)
	assert.True(t, ok)
	d, err := e.Extract(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "x", d.Title)
}

func TestRegistry_UnknownSource(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get(uuid.New())
	assert.False(t, ok)
}

func TestErrNoExtractor_Message(t *testing.T) {
	id := uuid.New()
	err := ErrNoExtractor{SourceID: id}
	assert.Contains(t, err.Error(), id.String())
}
