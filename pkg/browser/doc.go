// Package browser drives the single kiosk browser session through Playwright.
//
// A Driver opens sessions; each Session owns a Chromium browser, its context
// and one page navigated to the target address. Sessions report what happens
// on the page (console output, uncaught errors, later navigations, crashes)
// as Events on a channel, which is closed when the session is closed.
//
// # Lifecycle
//
//  1. Start: the driver installs (optionally) and runs the Playwright server
//  2. Open: launch -> new context -> new page -> goto, bounded by a timeout
//  3. Close: page, context and browser are closed in that order; every step
//     is attempted even if an earlier one fails
//  4. Stop: the Playwright server is shut down
//
// The package does not serialize sessions against each other. Keeping only
// one session alive is the caller's job.
package browser
