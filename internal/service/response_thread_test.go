package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmtriage/internal/models"
)

func TestResponseThread_AppendIsPersistent(t *testing.T) {
	at := time.Date(2025, time.May, 18, 9, 0, 0, 0, time.UTC)
	original := NewResponseThread([]models.Response{{Text: "first"}})

	next, err := original.Append("second", "agent", at)
	require.NoError(t, err)

	assert.Equal(t, 1, original.Len())
	assert.Equal(t, 2, next.Len())
	entries := next.Entries()
	assert.Equal(t, "first", entries[0].Text)
	assert.Equal(t, models.Response{Text: "second", Author: "agent", AuthoredAt: at}, entries[1])
}

func TestResponseThread_RejectsBlankText(t *testing.T) {
	thread := NewResponseThread(nil)

	same, err := thread.Append(" \n", "", time.Now())

	assert.Error(t, err)
	assert.Zero(t, same.Len())
}

func TestResponseThread_EntriesAreCopies(t *testing.T) {
	thread, err := NewResponseThread(nil).Append("hello", "", time.Now())
	require.NoError(t, err)

	entries := thread.Entries()
	entries[0].Text = "changed"

	assert.Equal(t, "hello", thread.Entries()[0].Text)
}
