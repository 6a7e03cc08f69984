package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixed(t *testing.T) {
	got := prefixed("s", "\n\tid, lead_id,\n\tstatus")
	assert.Equal(t, " s.id, s.lead_id, s.status", got)
}
