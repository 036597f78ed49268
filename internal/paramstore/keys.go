package paramstore

import (
	"fmt"
	"strings"
)

const statusKeyPattern = "jobs:*:status"

func StatusKey(jobID string) string {
	return fmt.Sprintf("jobs:%s:status", jobID)
}

func InstanceKey(jobID string) string {
	return fmt.Sprintf("jobs:%s:instance", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// JobIDFromStatusKey extracts the job id from a status parameter key.
func JobIDFromStatusKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "jobs:")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ":status")
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
