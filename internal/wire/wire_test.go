package wire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/couchkit/pkg/docid"
)

func TestMockSessionRecordsCallsAndDelegates(t *testing.T) {
	mock := NewMockSession("node-a:5984", func(req Request) (Response, error) {
		return Response{CAS: 7, Value: []byte(`{"ok":true}`)}, nil
	})

	resp, err := mock.Send(context.Background(), Request{ID: docid.ID{Key: "k"}, Kind: OpGet})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), resp.CAS)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, []string{"node-a:5984"}, mock.LastEndpoints())
}

func TestMockSessionWithoutHandlerReturnsZeroValue(t *testing.T) {
	mock := NewMockSession("node-a", nil)
	resp, err := mock.Send(context.Background(), Request{Kind: OpGet})
	require.NoError(t, err)
	assert.Equal(t, Response{}, resp)
}

func TestRevCASRoundTrip(t *testing.T) {
	cas := uint64(42)
	rev := casToRev(cas)
	assert.Equal(t, uint64(42), revToCAS(rev))
}

func TestRevToCASEmptyRev(t *testing.T) {
	assert.Equal(t, uint64(0), revToCAS(""))
}

func TestCasToRevZero(t *testing.T) {
	assert.Equal(t, "", casToRev(0))
}
