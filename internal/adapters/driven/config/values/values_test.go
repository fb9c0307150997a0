package values

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "groq", String("groq"))
	assert.Equal(t, "42", String(int64(42)))
	assert.Equal(t, "0.3", String(0.3))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, "1m0s", String(time.Minute))
	assert.Empty(t, String(nil))
	assert.Empty(t, String([]string{"a"}))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 7, 7},
		{"int64 from toml", int64(500), 500},
		{"uint64 from yaml", uint64(3), 3},
		{"float64 from json", 4.0, 4},
		{"string from env", " 64 ", 64},
		{"bad string", "many", 0},
		{"wrong type", true, 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.in))
		})
	}
}

func TestFloat(t *testing.T) {
	assert.InDelta(t, 0.3, Float(0.3), 1e-9)
	assert.InDelta(t, 0.5, Float(float32(0.5)), 1e-9)
	assert.InDelta(t, 1.0, Float(int64(1)), 1e-9)
	assert.InDelta(t, 0.9, Float("0.9"), 1e-9)
	assert.Zero(t, Float("abc"))
	assert.Zero(t, Float(nil))
}

func TestBool(t *testing.T) {
	assert.True(t, Bool(true))
	assert.True(t, Bool("true"))
	assert.True(t, Bool("1"))
	assert.False(t, Bool("no"))
	assert.False(t, Bool(1))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Minute, Duration("30m"))
	assert.Equal(t, 60*time.Second, Duration("60"))
	assert.Zero(t, Duration(""))
	assert.Zero(t, Duration("soon"))
}
