// Package summary computes the dashboard statistics over the records of the
// upstream table: record count, pending orders, revenue and top product.
package summary
