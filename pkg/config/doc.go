// Package config loads and validates wfsim simulation files.
//
// A file is YAML with one section per concern: simulation years and seed,
// workforce rates, job levels, compensation events, enrollment, tolerances,
// census source, storage, policies, the IRS limit table and runtime tuning.
// Unknown keys are rejected.
//
// Validation runs in two passes. Struct tags checked by go-playground/validator
// cover single fields and simple cross-field rules; the embedded CUE schema
// (see SchemaRegistry) covers rules that span sections, such as the merit date
// following the promotion date. Problems are reported together as
// ValidationErrors wrapped in an engine configuration error.
//
// Settings can be overridden from the environment with the WFSIM_ prefix,
// optionally seeded from .env files:
//
//	env, err := config.LoadEnv(".env")
//	if err != nil {
//		return err
//	}
//	f, err := config.NewLoader().Load("wfsim.yaml", env)
//	if err != nil {
//		return err
//	}
//	cfg, err := f.ToEngineConfig()
//
// Watch reports edits to a file so long-running commands can reload it.
package config
