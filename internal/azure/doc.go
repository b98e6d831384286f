// Package azure is a REST client for the Azure Cognitive Services used by
// Hill Myna: Speech-to-Text (short audio recognition) and Speaker
// Recognition (identification profiles, enrollments, identification and
// long-running operations).
//
// Both clients share one transport that retries transient failures
// (network errors, 429, 5xx) and throttles requests to the per-minute quota
// of the subscription. Non-success responses surface as *APIError.
package azure
