// Package library derives the file table shown to the operator from the device's songs and mappings.
//
// # Views
//
// A [View] is an immutable snapshot: the songs and mappings it was built from, the [models.SortState]
// in effect and the derived [models.DisplayRow] sequence. Sorting returns a new View; nothing is
// mutated in place, so a View handed to the presentation layer never changes underneath it.
//
// # Join
//
// Each song yields exactly one row. The first mapping whose song equals the row's name supplies
// the tag; songs without a mapping render unmapped. Mappings pointing at songs that no longer
// exist are kept in the View but produce no row.
//
// # Sorting
//
// Sorting is stable. Selecting the active column flips direction, selecting another column sorts
// it ascending. Names compare case-insensitively, size and date compare the raw numbers.
// After a refresh the current state is re-applied without toggling.
//
// # Refresh
//
// [ViewModel] fetches songs and mappings concurrently and joins only after both return.
// A songs failure yields an empty View and the error. A mappings failure is logged and the
// mappings are treated as empty. When refreshes overlap, the last one to complete wins.
package library
