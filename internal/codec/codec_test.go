package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	type payload struct {
		Name  string
		Count int64
		Ratio float64
	}
	in := payload{Name: "a", Count: 42, Ratio: 3.5}

	b, err := Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var out map[string]int
	err := Unmarshal([]byte{0xff, 0xff, 0xff}, &out)
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	b, err := MarshalEnvelope([]byte("raw-rows"), []byte("hash-index"))
	require.NoError(t, err)

	first, second, err := UnmarshalEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-rows"), first)
	assert.Equal(t, []byte("hash-index"), second)
}
