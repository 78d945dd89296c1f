// Package repository provides generic entity repositories on top of the
// database SQL client: lookups by primary key, listing, paging, slicing,
// saving entities or inputs, and deleting, each with an optional fetcher or
// a view type describing the shape of the result.
package repository
