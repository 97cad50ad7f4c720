// Package version reports which build of gowhisper is running.
//
// Release builds stamp it with:
//
//	go build -ldflags "-X github.com/NicolasHaas/gowhisper/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/gowhisper/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/gowhisper/pkg/version.date=2026-01-01"
//
// Without ldflags the VCS stamp the go tool embeds is used instead.
package version

import (
	"runtime/debug"
	"sync"
)

var (
	tag    string
	commit string
	date   string
)

var resolveOnce sync.Once

func resolve() {
	resolveOnce.Do(func() {
		if commit != "" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		commit, date = fromSettings(info.Settings, commit, date)
	})
}

// fromSettings picks the revision and commit time out of embedded build
// settings, keeping the given values when a key is missing.
func fromSettings(settings []debug.BuildSetting, rev, when string) (string, string) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}
		case "vcs.time":
			when = s.Value
		}
	}
	return rev, when
}

// String is the short form: the tag, else the commit, else "dev".
func String() string {
	resolve()
	switch {
	case tag != "":
		return tag
	case commit != "":
		return commit
	}
	return "dev"
}

// Full adds the commit and build date to String when they are known.
func Full() string {
	resolve()
	out := String()
	if tag != "" && commit != "" {
		out += " (" + commit + ")"
	}
	if date != "" && out != "dev" {
		out += " built " + date
	}
	return out
}
