package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("CRAFTMART_WORKER_ID", " cron-2 ")
	assert.Equal(t, "cron-2", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("CRAFTMART_WORKER_ID", "")
	assert.NotEmpty(t, GetID())
}
