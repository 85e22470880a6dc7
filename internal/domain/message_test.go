package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLog_MarkClickedImpliesOpened(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var m MessageLog

	m.MarkClicked(at)

	assert.True(t, m.Opened)
	assert.True(t, m.Clicked)
	require.NotNil(t, m.OpenedAt)
	require.NotNil(t, m.ClickedAt)
	assert.Equal(t, at, *m.OpenedAt)
	assert.Equal(t, at, *m.ClickedAt)
}

func TestMessageLog_MarksAreMonotonic(t *testing.T) {
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)
	var m MessageLog

	m.MarkOpened(first)
	m.MarkOpened(later)
	m.MarkClicked(later)

	assert.Equal(t, first, *m.OpenedAt, "first open time is kept")
	assert.Equal(t, later, *m.ClickedAt)

	m.MarkClicked(later.Add(time.Hour))
	assert.Equal(t, later, *m.ClickedAt, "first click time is kept")
	assert.True(t, m.Opened)
}
