package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("TC_STRING", "value")
	t.Setenv("TC_INT", " 42 ")
	t.Setenv("TC_BAD_INT", "forty-two")
	t.Setenv("TC_BOOL", "true")
	t.Setenv("TC_DURATION", "1m30s")

	assert.Equal(t, "value", GetString("TC_STRING", "x"))
	assert.Equal(t, "x", GetString("TC_MISSING", "x"))
	assert.Equal(t, 42, GetInt("TC_INT", 0))
	assert.Equal(t, 7, GetInt("TC_BAD_INT", 7))
	assert.True(t, GetBool("TC_BOOL", false))
	assert.Equal(t, 90*time.Second, GetDuration("TC_DURATION", 0))
	assert.Equal(t, time.Second, GetDuration("TC_MISSING", time.Second))
}
