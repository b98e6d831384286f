// Package commands defines the hillmyna administration CLI.
//
// Commands
//
//   - words            Sample challenge words
//   - enrollment-text  Print the text users read while enrolling
//   - users            Create, list, inspect, enable or remove users
//   - enroll           Send an enrollment sample for a user
//   - identify         Identify the speaker of a recording
//   - recognize        Transcribe a recording
//   - profiles         List or purge Azure identification profiles
//   - bench            Measure false accepts and rejects over labelled samples
//   - drive auth       Authorize Google Drive uploads
//
// # Implementation
//
// The root command loads the configuration and logger before any subcommand
// runs. Commands that talk to Azure or the database build the full
// dependency graph on demand through loadWire, so "drive auth" works before
// any credentials file exists.
package commands
