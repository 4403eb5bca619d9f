// Package cache memoizes (userID, permission) authorization decisions.
//
// Entries expire after a TTL and the cache is bounded by entry count with
// least-recently-used eviction. Side indices by user and by permission keep
// targeted invalidation proportional to the entries it removes. A background
// janitor purges expired entries on an interval until [Cache.Stop] is called.
package cache
