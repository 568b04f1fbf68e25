// Package cli provides the interactive escrowctl client.
//
// App.Root runs a REPL: the operator logs in once, then issues commands
// (create-repo, add-member, enroll-key, protect, ...) that are sent to the
// escrow server with the session's access token. Passwords are read from
// the terminal without echo.
package cli
