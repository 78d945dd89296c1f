// Package fetcher describes which columns and relations of an entity a query
// loads, and derives such descriptions from view (DTO) struct types.
package fetcher
