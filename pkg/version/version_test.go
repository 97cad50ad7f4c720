package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromSettings(t *testing.T) {
	rev, when := fromSettings([]debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
	}, "", "")
	assert.Equal(t, "0123456", rev)
	assert.Equal(t, "2026-10-01T12:00:00Z", when)

	rev, when = fromSettings(nil, "abc", "yesterday")
	assert.Equal(t, "abc", rev)
	assert.Equal(t, "yesterday", when)
}

func TestStrings(t *testing.T) {
	resolveOnce.Do(func() {})
	defer func(tg, c, d string) { tag, commit, date = tg, c, d }(tag, commit, date)

	tests := []struct {
		tag, commit, date string
		short, full       string
	}{
		{"", "", "", "dev", "dev"},
		{"", "abc1234", "2026-01-01", "abc1234", "abc1234 built 2026-01-01"},
		{"v1.2.0", "abc1234", "2026-01-01", "v1.2.0", "v1.2.0 (abc1234) built 2026-01-01"},
		{"v1.2.0", "", "", "v1.2.0", "v1.2.0"},
	}
	for _, tt := range tests {
		tag, commit, date = tt.tag, tt.commit, tt.date
		assert.Equal(t, tt.short, String())
		assert.Equal(t, tt.full, Full())
	}
}
