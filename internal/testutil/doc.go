// Package testutil contains fluent builders for threads and scripted model
// turns shared by the package tests.
package testutil
