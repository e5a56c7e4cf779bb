// Package notify emails the packaging summary to the science party once a
// run completes. Failure to send is a warning, never a run failure.
package notify
