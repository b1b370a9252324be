// Package wdsuite is the Selenium-style smoke suite: one WebDriver session
// is shared by every test of the package and quit after the last one.
// Expectations poll for up to 10 seconds.
//
// Run it with `go test ./suites/wdsuite`. It needs chromedriver, or a
// WebDriver server in QUIZSMOKE_WEBDRIVER_URL.
package wdsuite
