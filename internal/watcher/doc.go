// Package watcher applies live filesystem change events to the
// catalog. It subscribes once per outermost watched root and handles
// create, delete and rename deltas incrementally; files under
// directories not yet tracked as roots are left for the next full
// scanner pass, which alone has root-creation authority.
package watcher
