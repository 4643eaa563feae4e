// Package shared declares the repository set types, executor interfaces, and
// filesystem abstraction consumed by the module management services.
package shared
