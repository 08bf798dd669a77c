// Package artifact decides which transformed files are trustworthy enough to
// build and stages them for the build tool.
//
// Selection is driven by the transformation log: each relevant line is a
// delimited record naming an artifact file and its error count, and only
// records whose error count is literally zero are selected (see Schema).
//
// Staging matches by stem. An artifact identifier is the case-folded basename
// with its extension stripped, so selecting "a.dat" stages "sub/A.DAT" and
// also "sub/a.xml" if both exist. This is deliberate multi-format staging, not
// a byte-identity check.
package artifact
