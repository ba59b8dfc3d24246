// Command lister is the operator CLI for the listing upload pipeline:
// enqueue items, inspect the queue, run uploads by hand, and control the
// multi-account manager.
package main
