// Package pwsuite is the Playwright-style smoke suite: every test gets a
// fresh browser page that is closed when the test ends.
//
// Run it with `go test ./suites/pwsuite`. QUIZSMOKE_BASE_URL points it at
// a running quiz application; without it the bundled quiz site is served.
package pwsuite
