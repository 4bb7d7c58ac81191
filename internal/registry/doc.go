// Package registry holds the fixed pool of upstream servers the
// service watches. The pool is built once from configuration and is
// immutable afterwards; iteration order is configuration order, which
// downstream code relies on for deterministic tie-breaking.
package registry
