// Package policy evaluates Open Policy Agent (OPA) Rego policies against each
// simulated year.
//
// The Engine implements engine.PolicyEvaluator. After the built-in transition
// checks pass, every enabled policy sees the year's metrics as input and
// returns a deny set. Each element becomes a failed transition check named
// "policy.<name>"; only error-severity violations fail the year.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger, policy.DefaultParams(), true)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	checks, err := eng.EvaluateTransition(ctx, result)
//
// # Built-in Policies
//
//  1. termination-drift (warning) - experienced termination rate strays from target
//  2. compensation-growth-ceiling (error) - average compensation grows too fast
//  3. participation-floor (info) - plan participation below the floor
//
// Thresholds come from Params and are visible to every policy as
// data.wfsim.params.
//
// # Custom Policies
//
// Policies are Rego v1 modules read from .rego files, single-policy JSON files
// or JSON bundles. The file name is the policy name. A leading comment block is
// the description and may set the default severity:
//
//	# Headcount must not fall below 100.
//	# severity: error
//	package wfsim.headcount
//
//	deny contains violation if {
//	    input.metrics.ending_active < 100
//	    violation := {
//	        "message": sprintf("headcount %d below 100", [input.metrics.ending_active]),
//	        "expected": ">= 100",
//	        "actual": sprintf("%d", [input.metrics.ending_active]),
//	    }
//	}
//
// Engine.Watch reloads custom policies when their files change.
package policy
