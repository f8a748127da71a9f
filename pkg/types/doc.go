// Package types provides shared domain types for the Atlas search service.
//
// The central type is TypedQuery, the tagged union produced by classifying a
// raw caller query into one of three shapes:
//
//	types.TypedQuery{
//	    Type:     types.QueryTypeSequence,
//	    Sequence: &types.SequenceQuery{Sequence: "GTCAGTCC", Threshold: 100},
//	}
//
// A sequence query carries the nucleotide string and a percent-identity
// threshold. A protein variant query carries gene, reference amino acid,
// position and alternate amino acid (rpoB_S450L). A DNA variant query carries
// reference bases, genome position and alternate bases (C761T).
//
// RawQuery is the pre-classification input: free text plus structured fields.
// Classification treats it as immutable and returns a residual copy with the
// consumed fields removed.
package types
