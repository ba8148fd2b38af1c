package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	m := New(false, "")
	assert.Nil(t, m.Registry())
	// Must not panic.
	m.ObserveCacheHit()
	m.ObserveResolve(time.Millisecond, false)
	m.ObserveMerge(time.Millisecond)
	m.ObserveBuild(time.Millisecond)
	m.ObserveInstantiation(true)
}

func TestNew_EnabledRegistersCollectors(t *testing.T) {
	m := New(true, "sparkwheel_test")
	require := assert.New(t)
	require.NotNil(m.Registry())

	m.ObserveCacheHit()
	m.ObserveResolve(5*time.Millisecond, false)
	m.ObserveInstantiation(false)

	families, err := m.Registry().Gather()
	require.NoError(err)
	require.NotEmpty(families)
}
