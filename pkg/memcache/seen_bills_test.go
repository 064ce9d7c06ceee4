package mem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarkSeenReportsRedelivery(t *testing.T) {
	store := NewSeenBills()

	assert.False(t, store.MarkSeen("B-1", time.Minute))
	assert.True(t, store.MarkSeen("B-1", time.Minute))
	assert.True(t, store.Seen("B-1"))
	assert.False(t, store.Seen("B-2"))
}

func TestMarkSeenExpires(t *testing.T) {
	store := NewSeenBills()

	store.MarkSeen("B-1", -time.Second)
	assert.False(t, store.Seen("B-1"))
	assert.False(t, store.MarkSeen("B-1", time.Minute))
}
