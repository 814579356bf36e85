// Package testutil provides shared constants for tests across go-tdclient.
package testutil

// Test Error Messages
//
// These constants define common error messages used in test assertions.

const (
	// TestError is a generic error message for test error scenarios.
	TestError = "test error"

	// TestConnectionRefused is the common network error message for connection failures.
	// Used by the retry engine tests to simulate transport faults.
	TestConnectionRefused = "connection refused"
)

// Test Endpoints
//
// These constants define endpoint and proxy values used in configuration tests.

const (
	// TestHostWithPort is localhost with a common proxy port.
	TestHostWithPort = "localhost:8080"
)
