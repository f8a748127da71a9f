// Package classifier recognizes raw caller queries as one of the typed query
// shapes the analysis service understands.
//
// Classification is pure pattern matching against the free-text query, tried
// in a fixed order:
//
//  1. sequence        ^[ACGT]+$
//  2. protein variant gene_S450L (gene, ref amino acid, position, alt)
//  3. dna variant     C761T (ref bases, position, alt bases, X wildcard)
//
// The first match wins. Structured fields in the raw query (threshold, gene,
// ref, pos, alt) override anything parsed from the text and are removed from
// the residual query returned to the caller. Text matching no pattern is not
// an error; it simply is not a fingerprintable search.
package classifier
