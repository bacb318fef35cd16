// Package pipeline runs the reconstruction stages in order: normal
// estimation, implicit surface reconstruction, cleanup, crop to the input
// bounds, and level-of-detail generation.
//
// This package is the composition root. It imports the stage packages and
// the storage, report and mesh I/O adapters; none of those import pipeline.
// Stages own their algorithms; the pipeline only sequences them, times them,
// and names the stage that failed.
package pipeline
