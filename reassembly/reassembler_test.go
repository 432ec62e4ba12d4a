package reassembly

import (
	"testing"

	"github.com/msgboxio/ikev1/protocol"
	"github.com/stretchr/testify/require"
)

func frag(id, num uint8, last bool, data []byte) *protocol.FragmentPayload {
	return &protocol.FragmentPayload{FragmentId: id, Number: num, Last: last, Data: data}
}

func TestReassemblerInOrder(t *testing.T) {
	r := New()
	body, err := r.Add(frag(1, 1, false, []byte("abc")))
	require.NoError(t, err)
	require.Nil(t, body)

	body, err = r.Add(frag(1, 2, true, []byte("def")))
	require.NoError(t, err)
	require.Equal(t, []byte("abcdef"), body)
}

func TestReassemblerOutOfOrder(t *testing.T) {
	r := New()
	_, err := r.Add(frag(9, 2, true, []byte("world")))
	require.NoError(t, err)
	body, err := r.Add(frag(9, 1, false, []byte("hello")))
	require.NoError(t, err)
	require.Equal(t, []byte("helloworld"), body)
}

func TestReassemblerDuplicateIndexReplaces(t *testing.T) {
	r := New()
	_, err := r.Add(frag(1, 1, false, []byte("old")))
	require.NoError(t, err)
	_, err = r.Add(frag(1, 1, false, []byte("new")))
	require.NoError(t, err)
	body, err := r.Add(frag(1, 2, true, []byte("tail")))
	require.NoError(t, err)
	require.Equal(t, []byte("newtail"), body)
}

func TestReassemblerFragmentIdChangeResets(t *testing.T) {
	r := New()
	_, err := r.Add(frag(1, 1, false, []byte("abc")))
	require.NoError(t, err)
	// a fragment from a new set arrives before the first completes
	body, err := r.Add(frag(2, 1, true, []byte("xyz")))
	require.NoError(t, err)
	require.Equal(t, []byte("xyz"), body)
}

func TestReassemblerBadNumber(t *testing.T) {
	r := New()
	_, err := r.Add(frag(1, 0, false, nil))
	require.Error(t, err)
	_, err = r.Add(frag(1, 17, false, nil))
	require.Error(t, err)
}

func TestReassemblerResetAfterComplete(t *testing.T) {
	r := New()
	_, err := r.Add(frag(1, 1, true, []byte("one")))
	require.NoError(t, err)
	require.False(t, r.have)
}
