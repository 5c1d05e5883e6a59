// Command mediacat runs the media catalog daemon and its inspection
// commands. Without a subcommand it starts the daemon; status, scan, and
// review provide the operator surface.
package main
