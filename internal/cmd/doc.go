// Package cmd implements the dashauth command line: serve, hash-password
// and check-config.
package cmd
