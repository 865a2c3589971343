package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

func TestFormatCacheStats(t *testing.T) {
	var buf bytes.Buffer
	formatCacheStats(&buf, geocode.CacheStats{Backend: "sqlite", Entries: 12, Matched: 9, Expired: 2}, "672h0m0s")

	out := buf.String()
	assert.Contains(t, out, "backend")
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, "672h0m0s")
	assert.Regexp(t, `entries\s+12`, out)
	assert.Regexp(t, `matched\s+9`, out)
	assert.Regexp(t, `expired\s+2`, out)
}
