// Package outputstream converts raw subprocess pipes into bounded sequences
// of text chunks.
//
// OutputStreamer reads pipes in configurable increments, repairs byte
// sequences that split multi-byte characters across reads, enforces a
// per-stream output ceiling with a single truncation marker, and converts
// read failures into inline marker chunks instead of errors.
package outputstream
