// Package generate orchestrates generation jobs: full batch creation and
// per-line regeneration via text-to-speech or voice conversion. It drives
// the take loop, aggregates per-take failures into a job verdict, and keeps
// the job record and progress sink in sync at every transition.
package generate
