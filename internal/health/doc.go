// Package health defines the record produced by probing an upstream:
// its status classification, score, and probe diagnostics. Records are
// immutable values; every other package passes them around by copy.
package health
