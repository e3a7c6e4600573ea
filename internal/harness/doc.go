// Package harness provides conformance testing for the inference pipeline.
//
// The harness compiles a program named by a scenario, runs inference,
// planning and emission, and checks the outcome against the scenario's
// expectations.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: vec_scale
//	description: "What this scenario validates"
//	program: ../programs/vec.cue
//	unit: vec            # optional when the file declares one program
//	backend: rust        # default
//	max_passes: 0        # 0 derives the ceiling from the call graph
//	expect:
//	  converged: true
//	  max_passes: 4
//	  modes:
//	    scale: [exclusive_write, owned]
//	  consequences:
//	    - callable: main
//	      label: call scale arg 0
//	      is: insert_exclusive
//	  emitted:
//	    - "scale(&mut p, 2);"
//	  diagnostics: []
//
// A scenario may also be a txtar bundle: the archive comment holds the
// YAML above, one .cue file holds the program and an optional "emitted"
// file holds the exact expected output.
//
// # Determinism
//
// Each run journals the compilation into a private in-memory store and,
// when inference converged, compiles the program again seeded from the
// journal. Both runs must reach the same registry and the same output.
// Compilation IDs come from testutil.SequentialIDGenerator so journal rows
// are stable across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/vec_scale.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
