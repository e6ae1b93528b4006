package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	t.Setenv("CALLBIO_TEST_KEY", "from-os")
	Env = map[string]string{"CALLBIO_TEST_KEY": "from-file"}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, "from-file", GetEnv("CALLBIO_TEST_KEY", "def"))

	Env = map[string]string{}
	assert.Equal(t, "from-os", GetEnv("CALLBIO_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("CALLBIO_MISSING_KEY", "def"))
}

func TestGetDuration(t *testing.T) {
	Env = map[string]string{}
	t.Cleanup(func() { Env = nil })

	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "", want: 10 * time.Second},
		{value: "5s", want: 5 * time.Second},
		{value: "750ms", want: 750 * time.Millisecond},
		{value: "7", want: 7 * time.Second},
		{value: "nope", want: 10 * time.Second},
		{value: "-3s", want: 10 * time.Second},
	}
	for _, tt := range tests {
		Env["CALLBIO_TIMEOUT"] = tt.value
		assert.Equal(t, tt.want, GetDuration("CALLBIO_TIMEOUT", 10*time.Second), "value %q", tt.value)
	}
}

func TestGetInt(t *testing.T) {
	Env = map[string]string{"CALLBIO_LIMIT": "120"}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, 120, GetInt("CALLBIO_LIMIT", 60))

	Env["CALLBIO_LIMIT"] = "0"
	assert.Equal(t, 60, GetInt("CALLBIO_LIMIT", 60))

	Env["CALLBIO_LIMIT"] = "many"
	assert.Equal(t, 60, GetInt("CALLBIO_LIMIT", 60))
}
