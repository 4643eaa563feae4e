// Package evergreen provides a client for the Evergreen REST API along with
// loading of the API credentials stored in ~/.evergreen.yml.
package evergreen
