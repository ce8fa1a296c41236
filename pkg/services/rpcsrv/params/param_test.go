package params

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/stretchr/testify/require"
)

func TestParam_UnmarshalJSON(t *testing.T) {
	msg := `["str1", 123, null, ["Block.Pushed", "Peer.NewPeer"], {"add":true}, true, "42", [1]]`
	var ps Params
	require.NoError(t, json.Unmarshal([]byte(msg), &ps))
	require.Len(t, ps, 8)

	require.Equal(t, `"str1"`, ps.Value(0).String())
	str, err := ps.Value(0).GetString()
	require.NoError(t, err)
	require.Equal(t, "str1", str)
	_, err = ps.Value(1).GetString()
	require.ErrorIs(t, err, errNotAString)
	_, err = ps.Value(0).GetInt()
	require.Error(t, err)

	i, err := ps.Value(1).GetInt()
	require.NoError(t, err)
	require.Equal(t, 123, i)
	i, err = ps.Value(6).GetInt()
	require.NoError(t, err)
	require.Equal(t, 42, i)

	require.True(t, ps.Value(2).IsNull())
	_, err = ps.Value(2).GetInt()
	require.ErrorIs(t, err, errNullParameter)
	_, err = (&Param{RawMessage: []byte(`["a", null]`)}).GetStrings()
	require.Error(t, err)

	tokens, err := ps.Value(3).GetStrings()
	require.NoError(t, err)
	require.Equal(t, []string{"Block.Pushed", "Peer.NewPeer"}, tokens)
	_, err = ps.Value(7).GetStrings()
	require.Error(t, err)
	_, err = ps.Value(0).GetArray()
	require.Error(t, err)

	var opts neorpc.SubscribeOptions
	require.NoError(t, ps.Value(4).GetObject(&opts))
	require.True(t, opts.Add)
	require.Error(t, ps.Value(0).GetObject(&opts))
	require.Error(t, (&Param{RawMessage: []byte(`{"merge":true}`)}).GetObject(&opts))

	_, err = ps.Value(5).GetInt()
	require.Error(t, err)

	require.Nil(t, ps.Value(8))
	_, err = ps.Value(8).GetInt()
	require.ErrorIs(t, err, errMissingParameter)
	require.Error(t, ps.Value(8).GetObject(&opts))
}

type readCloser struct {
	io.Reader
}

func (readCloser) Close() error { return nil }

func TestRequestDecodeData(t *testing.T) {
	r := NewRequest()
	require.NoError(t, r.DecodeData(readCloser{bytes.NewReader([]byte(
		`{"jsonrpc":"2.0","method":"waitevents","params":[5],"id":1}`))}))
	require.NotNil(t, r.In)
	require.Equal(t, "waitevents", r.In.Method)
	require.Equal(t, json.RawMessage("1"), r.In.RawID)

	r = NewRequest()
	require.NoError(t, r.DecodeData(readCloser{bytes.NewReader([]byte(
		`[{"jsonrpc":"2.0","method":"subscribe","params":[["Block.Pushed"]],"id":1},{"jsonrpc":"2.0","method":"waitevents","id":2}]`))}))
	require.Nil(t, r.In)
	require.Len(t, r.Batch, 2)
	require.Empty(t, r.Batch[1].RawParams)

	for _, bad := range []string{`[]`, `{"jsonrpc":`, `"string"`} {
		require.Error(t, NewRequest().DecodeData(readCloser{bytes.NewReader([]byte(bad))}), bad)
	}
}
