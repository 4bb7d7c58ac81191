// Package selector picks the best upstream out of a health snapshot.
// Selection is a pure function over records: same snapshot in, same
// winner out.
package selector
