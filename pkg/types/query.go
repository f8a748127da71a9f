package types

import "fmt"

// QueryType identifies which typed query variant is active
type QueryType string

const (
	// QueryTypeSequence is a raw nucleotide sequence search
	QueryTypeSequence QueryType = "sequence"
	// QueryTypeProteinVariant is a gene/amino-acid variant search (e.g. rpoB_S450L)
	QueryTypeProteinVariant QueryType = "protein-variant"
	// QueryTypeDNAVariant is a nucleotide-level variant search (e.g. C761T)
	QueryTypeDNAVariant QueryType = "dna-variant"
)

// DefaultSequenceThreshold is the percent-identity threshold applied when the
// raw query carries no explicit threshold
const DefaultSequenceThreshold = 100

// SequenceQuery searches the analysis index for a nucleotide sequence
type SequenceQuery struct {
	Sequence  string `json:"sequence"`
	Threshold int    `json:"threshold"` // percent identity, 1-100
}

// ProteinVariantQuery searches for an amino-acid substitution in a gene
type ProteinVariantQuery struct {
	Gene string `json:"gene"`
	Ref  string `json:"ref"` // single amino-acid letter
	Pos  int    `json:"pos"`
	Alt  string `json:"alt"` // single amino-acid letter
}

// DNAVariantQuery searches for a nucleotide substitution at a genome position
type DNAVariantQuery struct {
	Ref string `json:"ref"` // nucleotide bases (A/C/G/T/X)
	Pos int    `json:"pos"`
	Alt string `json:"alt"`
}

// TypedQuery is the tagged union produced by classification. Exactly one of
// the variant pointers is non-nil, selected by Type.
type TypedQuery struct {
	Type           QueryType            `json:"type"`
	Sequence       *SequenceQuery       `json:"sequence,omitempty"`
	ProteinVariant *ProteinVariantQuery `json:"protein_variant,omitempty"`
	DNAVariant     *DNAVariantQuery     `json:"dna_variant,omitempty"`
}

// Validate checks that the union is well-formed: the tag matches the populated
// variant and no other variant is set
func (q TypedQuery) Validate() error {
	set := 0
	if q.Sequence != nil {
		set++
	}
	if q.ProteinVariant != nil {
		set++
	}
	if q.DNAVariant != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: %d variants populated", ErrMalformedQuery, set)
	}

	switch q.Type {
	case QueryTypeSequence:
		if q.Sequence == nil {
			return fmt.Errorf("%w: type %s without sequence payload", ErrMalformedQuery, q.Type)
		}
		if q.Sequence.Threshold < 1 || q.Sequence.Threshold > 100 {
			return fmt.Errorf("%w: threshold %d out of range", ErrMalformedQuery, q.Sequence.Threshold)
		}
	case QueryTypeProteinVariant:
		if q.ProteinVariant == nil {
			return fmt.Errorf("%w: type %s without protein variant payload", ErrMalformedQuery, q.Type)
		}
	case QueryTypeDNAVariant:
		if q.DNAVariant == nil {
			return fmt.Errorf("%w: type %s without dna variant payload", ErrMalformedQuery, q.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedQuery, q.Type)
	}
	return nil
}

// RawQuery is the caller-supplied query before classification: free text plus
// optional structured fields (threshold, gene, ref, pos, alt, arbitrary
// filters). Classification never mutates it; consumed fields are absent from
// the residual copy returned alongside the typed query.
type RawQuery struct {
	Text   string
	Fields map[string]any
}

// Field returns a structured field and whether it was present
func (r RawQuery) Field(key string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Clone returns a deep copy of the raw query
func (r RawQuery) Clone() RawQuery {
	out := RawQuery{Text: r.Text}
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}
