// Package repositories provides the persistence layer for credentials,
// cached tracks, and collections.
//
// Collections are stored as single documents: the ordered song list, editor
// set, tags, and derived images live in JSON columns and are written with one
// atomic UPDATE guarded by the collection version. Track upserts are
// insert-or-replace by track id and safe to retry.
package repositories
