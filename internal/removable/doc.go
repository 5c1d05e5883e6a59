// Package removable watches udev netlink events for USB block devices and
// surfaces attach/detach notifications to the daemon. The identifier it
// reports is the stable device serial when available, which is what the
// catalog records against files living on removable storage.
package removable
