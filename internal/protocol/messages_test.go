package protocol

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinutesDecoding(t *testing.T) {
	cases := []struct {
		body string
		want Minutes
	}{
		{`{"minutes": 5}`, MinutesOf(5)},
		{`{"minutes": 2.5}`, MinutesOf(2.5)},
		{`{"minutes": "12"}`, MinutesOf(12)},
		{`{"minutes": "abc"}`, Minutes{}},
		{`{"minutes": null}`, Minutes{}},
		{`{"minutes": true}`, Minutes{}},
		{`{"minutes": [1]}`, Minutes{}},
		{`{}`, Minutes{}},
		{`{"minutes": "NaN"}`, Minutes{}},
		{`{"minutes": 1e400}`, MinutesOf(math.Inf(1))},
		{`{"minutes": -1e400}`, MinutesOf(math.Inf(-1))},
		{`{"minutes": "Infinity"}`, MinutesOf(math.Inf(1))},
	}
	for _, tc := range cases {
		var req GenerateRequest
		require.NoError(t, json.Unmarshal([]byte(tc.body), &req), tc.body)
		assert.Equal(t, tc.want, req.Minutes, tc.body)
	}
}

func TestGenerateResponseNullAudio(t *testing.T) {
	data, err := json.Marshal(GenerateResponse{Script: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"script":"hi","audio":null}`, string(data))
}

func TestMinutesEncodingNonFinite(t *testing.T) {
	data, err := json.Marshal(MinutesOf(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	data, err = json.Marshal(MinutesOf(math.Inf(1)))
	require.NoError(t, err)
	var back Minutes
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, math.MaxFloat64, back.Value)
}
