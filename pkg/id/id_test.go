package id

import (
	"sort"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortableULID(t *testing.T) {
	t.Parallel()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
		_, err := ulid.ParseStrict(ids[i])
		require.NoError(t, err)
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids from one process increase")
}

func TestTime(t *testing.T) {
	t.Parallel()

	id := New()
	ts, err := Time(id)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}
