// Package reconcile decides, for every scenario and rule declared locally,
// whether the remote platform needs a create, an update, or nothing.
//
// The package has three parts:
//
//   - Resolver turns a user-supplied (name, id) pair for an application or
//     rule into a canonical remote identity.
//   - ScenarioReconciler performs a three-way comparison between the local
//     build output, the cached metadata and the remote scenario, and detects
//     drift introduced on the platform since the last sync.
//   - RuleReconciler creates or updates rules, re-binds scenarios in declared
//     order and repairs the rule order of the application.
//
// # Ordering
//
// Artifacts are processed one at a time in declared order. Rule
// reconciliation reads the scenario ids written by scenario reconciliation,
// so scenarios must be reconciled first within the same batch.
//
// # Failure model
//
// There are no retries or rollbacks. The first failing artifact aborts the
// batch; state already committed for earlier artifacts is kept.
package reconcile
