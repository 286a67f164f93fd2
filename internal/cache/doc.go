// Package cache is the local file-backed state of a callscript project.
//
// Two trees live under the project root:
//
//   - the config tree (default "voxfiles"): human-edited JSON describing each
//     application and its rules. Files are read as JSONC, so comments and
//     trailing commas are allowed.
//   - the metadata tree (default ".callscript/metadata"): one JSON record per
//     synced artifact, mapping its local name to the last-known remote id and
//     content hash.
//
// # Read semantics
//
// A record that is missing or cannot be decoded is reported as absent, never
// as a fatal error. Decode failures come back as *FormatError alongside
// found=false so callers can log them and continue with their create/adopt
// branches.
//
// # Ownership
//
// The metadata tree is owned by a single running process. There is no file
// locking; concurrent runs against the same project are unsupported.
package cache
