// Command takevault is the CLI for the take vault: it lists and inspects
// batches, rebuilds ranked trees, locks finished batches, and submits
// generation jobs to the shared jobs database that the daemon drains.
package main
