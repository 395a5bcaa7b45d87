// Package harness runs end-to-end deplag scenarios.
//
// A scenario describes an input text, an optional partial output left by an
// earlier run, a scripted synonym provider, and the expected result. The
// harness runs the real runner against temporary files and a temporary
// store, then checks the output text, the resume state and the assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	window: 2
//	input: |
//	  The quick fox runs.
//	existing_output: ""        # optional partial output to resume from
//	synonyms:                  # word -> replacement, always tag-compatible
//	  quick: speedy
//	delays:                    # word -> provider latency in milliseconds
//	  quick: 30
//	failures:                  # word -> transient failures before success
//	  fox: 2
//	expect:
//	  output: |
//	    The speedy wolf sprints.
//	  resume_offset: 0
//	  seeded: 0
//	assertions:
//	  - type: cache_contains
//	    word: quick
//	    replacement: speedy
//	  - type: provider_calls
//	    word: quick
//	    count: 1
//
// # Assertion Types
//
//   - cache_contains: the cache maps word to replacement after the run
//   - cache_absent: the cache has no entry for word
//   - provider_calls: the provider saw exactly count lookups of word
//   - run_status: the run was recorded in the store with status
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (the scenario name), a stepping
// clock and zero retry backoff. Completion order still varies with the
// configured delays; the output does not, which is what golden comparison
// relies on.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fox.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(context.Background(), scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
