package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in     string
		expErr bool
		expDur time.Duration
	}{
		{"", true, 0},
		{"d", true, 0},
		{"1.5s", false, 1500 * time.Millisecond},
		{"10s", false, 10 * time.Second},
		{"250", false, 250 * time.Millisecond},
		{"1m30s", false, 90 * time.Second},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run("in_"+tc.in, func(t *testing.T) {
			t.Parallel()
			d, err := ParseDuration(tc.in)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expDur, d)
		})
	}
}

func TestNullDuration(t *testing.T) {
	t.Parallel()

	t.Run("JSON", func(t *testing.T) {
		t.Parallel()

		var d NullDuration
		require.NoError(t, json.Unmarshal([]byte(`"10s"`), &d))
		assert.Equal(t, NullDurationFrom(10*time.Second), d)

		require.NoError(t, json.Unmarshal([]byte(`null`), &d))
		assert.False(t, d.Valid)

		b, err := json.Marshal(NullDurationFrom(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, `"1m0s"`, string(b))

		b, err = json.Marshal(NullDuration{})
		require.NoError(t, err)
		assert.Equal(t, `null`, string(b))
	})
	t.Run("YAML", func(t *testing.T) {
		t.Parallel()

		var v struct {
			Timeout NullDuration `yaml:"timeout"`
			Other   NullDuration `yaml:"other"`
		}
		require.NoError(t, yaml.Unmarshal([]byte("timeout: 3s\n"), &v))
		assert.Equal(t, 3*time.Second, v.Timeout.TimeDuration())
		assert.True(t, v.Timeout.Valid)
		assert.False(t, v.Other.Valid)
	})
	t.Run("Text", func(t *testing.T) {
		t.Parallel()

		var d NullDuration
		require.NoError(t, d.UnmarshalText([]byte("")))
		assert.False(t, d.Valid)
		assert.Error(t, d.UnmarshalText([]byte("soon")))
	})
}
