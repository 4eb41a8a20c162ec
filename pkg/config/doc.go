// Package config holds the run configuration of wealthpack.
//
// Configuration is a plain struct with yaml and json tags. Default returns
// the values the CLI starts from; a YAML file loaded with Load overlays
// them, with ${VAR} references substituted from the environment before
// parsing. Validate must pass before a Config reaches the pipeline, which
// then treats it as immutable.
//
// Example:
//
//	cfg := config.Default()
//	if err := config.Load("wealthpack.yaml", cfg); err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
