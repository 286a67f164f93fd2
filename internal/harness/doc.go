// Package harness runs deploy cases against an in-memory platform.
//
// A case describes the remote state before the first run, the local rules
// config and scenario sources, and a list of steps that edit either side and
// run uploads. The harness records every platform call so that the exact
// sequence of mutations can be asserted and snapshotted.
//
// # Case Format
//
// Cases are defined in YAML files with the following structure:
//
//	name: case_name
//	description: "What this case validates"
//	application: main
//	remote:
//	  applications: [main.acme.voximplant.com]
//	  scenarios:
//	    - { name: greet, script: "v1" }
//	  rules:
//	    - { application: main.acme.voximplant.com, name: inbound, pattern: ".*", scenarios: [greet] }
//	rules:
//	  - { name: inbound, pattern: ".*", scenarios: [greet] }
//	sources:
//	  greet: "v1"
//	steps:
//	  - upload: { force: false, dry_run: false }
//	    expect:
//	      mutations: []
//	      scenarios: { greet: skipped }
//	  - edit_remote: { scenario: greet, script: "hotfix" }
//	assertions:
//	  - type: remote_script
//	    scenario: greet
//	    script: "v1"
//
// # Assertion Types
//
//   - remote_script: the platform holds the given script for a scenario
//   - cache_in_sync: the cached id and hash of a scenario match the platform
//   - rule_order: the application's rules are in the given order remotely
//   - rule_bindings: a rule binds the given scenarios in order
//   - journal: the journal holds runs with the given statuses, oldest first
//
// # Deterministic Testing
//
// Every case runs against a fresh fake platform (ids start at 101), a fresh
// cache in a temp dir, and a journal with sequential run ids and a stepping
// clock, so traces are identical across runs.
package harness
