// Package engine coordinates probing, caching, and selection. It
// answers three questions: what does the whole pool look like right
// now, which upstream should a caller use next, and how is one named
// upstream doing. Fresh cache entries answer immediately; everything
// else is probed concurrently under a worker limit, with at most one
// in-flight probe per upstream at any time.
package engine
