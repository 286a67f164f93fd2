// Package model provides the artifact types shared by every callscript
// package: applications, scenarios, rules, their remote counterparts and the
// metadata records cached locally between runs.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import model; model imports nothing internal.
//
// Key constraints:
//   - Remote identifiers are int64; zero means "not resolved"
//   - Content hashes are lower-case hex SHA-256 of the script bytes
//   - All JSON tags use snake_case
package model
