// Package cache stores loaded entities keyed by "<TypeName>-<id>" so that
// lookups by primary key can skip the database. Absent rows are cached with a
// null marker as well.
package cache
