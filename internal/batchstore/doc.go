// Package batchstore persists batch metadata documents and derives the
// ranked directory tree for generated voice takes.
//
// On-disk layout per batch:
//
//	<root>/<skin>/<voice>/<batchID>/metadata.json
//	<root>/<skin>/<voice>/<batchID>/takes/<line>_take_<n>.mp3
//	<root>/<skin>/<voice>/<batchID>/ranked/{01..05}/<file>
//	<root>/<skin>/<voice>/<batchID>/LOCKED
//
// Metadata writes replace the whole document through an atomic rename; the
// ranked tree is rebuilt aside and swapped in, so readers always observe a
// complete tree. The lock sentinel is advisory: the store records it but
// does not refuse writes to a locked batch.
package batchstore
