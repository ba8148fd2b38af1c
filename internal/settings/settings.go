// Package settings binds sparkwheel's environment toggles (spec §6)
// through viper, the way papapumpkin-quasar and ZebulonRouseFrantzich-zerb
// bind their own runtime configuration.
package settings

import "github.com/spf13/viper"

const envPrefix = "SPARKWHEEL"

// Settings holds the four boolean toggles spec §6 names by name.
type Settings struct {
	// AllowMissingReference downgrades a missing @-target encountered
	// while splicing a marker to nil with a logged warning, instead of
	// failing resolution (the "forward-referencing templates" mode).
	AllowMissingReference bool
	// StrictKeys rejects duplicate mapping keys within one YAML file.
	StrictKeys bool
	// DisableExpressions returns `$...` scalars as literal strings
	// without invoking the expression evaluator.
	DisableExpressions bool
	// Debug enables verbose diagnostics.
	Debug bool
}

// Load binds Settings from environment variables prefixed SPARKWHEEL_
// (e.g. SPARKWHEEL_ALLOW_MISSING_REFERENCE=true), falling back to the
// spec's stated defaults (all off) for anything unset.
func Load() Settings {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("allow_missing_reference", false)
	v.SetDefault("strict_keys", false)
	v.SetDefault("disable_expressions", false)
	v.SetDefault("debug", false)

	return Settings{
		AllowMissingReference: v.GetBool("allow_missing_reference"),
		StrictKeys:            v.GetBool("strict_keys"),
		DisableExpressions:    v.GetBool("disable_expressions"),
		Debug:                 v.GetBool("debug"),
	}
}
