package paramstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobIDFromStatusKey(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{"jobs:job_1700000000_abcd1234:status", "job_1700000000_abcd1234", true},
		{"jobs:job_1:instance", "", false},
		{"ratelimit:abc", "", false},
		{"jobs::status", "", false},
		{"jobs:a:b:status", "", false},
	}

	for _, tt := range tests {
		id, ok := JobIDFromStatusKey(tt.key)
		assert.Equal(t, tt.wantOK, ok, tt.key)
		assert.Equal(t, tt.wantID, id, tt.key)
	}
}

func TestKeyShapes(t *testing.T) {
	assert.Equal(t, "jobs:j1:status", StatusKey("j1"))
	assert.Equal(t, "jobs:j1:instance", InstanceKey("j1"))
	assert.Equal(t, "ratelimit:pfx", RateLimitKey("pfx"))
}
