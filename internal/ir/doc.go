// Package ir provides the value types shared by every sweep package.
//
// Parameter grids, combinations and merged simulator overrides are all built
// from the sealed Value interface. ir imports nothing internal; all other
// internal packages import ir.
//
// Key design constraints:
//   - Objects are plain maps; iterate them through SortedKeys for determinism
//   - No nulls: a missing parameter is absent, never null
//   - Canonical JSON (sorted keys, NFC strings) is the only encoding used for hashing
package ir
