package config

import "maps"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded mid-session are tracked:
// everything else (audio parameters, providers, languages) requires a new
// session to take effect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GlossaryChanged is true when terms, aliases, thresholds, or alias case
	// sensitivity changed. A running session rebuilds its glossary and
	// applies it from the next final transcript on.
	GlossaryChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if glossaryChanged(&old.Glossary, &new.Glossary) {
		d.GlossaryChanged = true
	}

	return d
}

func glossaryChanged(old, new *GlossaryConfig) bool {
	if old.PhoneticThreshold != new.PhoneticThreshold ||
		old.FuzzyThreshold != new.FuzzyThreshold ||
		old.CaseSensitiveAliases != new.CaseSensitiveAliases {
		return true
	}
	if len(old.Terms) != len(new.Terms) {
		return true
	}
	for i := range old.Terms {
		if old.Terms[i] != new.Terms[i] {
			return true
		}
	}
	return !maps.Equal(old.Aliases, new.Aliases)
}
