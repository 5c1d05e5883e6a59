// Package daemon coordinates the background services: the input folder
// watcher, the removable-device monitor, and the single-instance lock that
// keeps two daemons from sharing one catalog.
package daemon
