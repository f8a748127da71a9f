package classifier

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/atlasbio/atlas-search/pkg/types"
)

// Classification order is significant: sequence is tried first, then protein
// variant, then DNA variant. The first pattern that matches wins, so free text
// that could satisfy more than one pattern always resolves to the
// earliest-tried type.
var (
	sequenceRe = regexp.MustCompile(`^[ACGT]+$`)

	// gene name, underscore, reference amino acid, position, alternate amino acid
	proteinVariantRe = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*)_([ACDEFGHIKLMNPQRSTVWY*])([0-9]+)([ACDEFGHIKLMNPQRSTVWY*])$`)

	// reference bases, position, alternate bases; X is the unknown-base wildcard
	dnaVariantRe = regexp.MustCompile(`^([ACGTX]+)([0-9]+)([ACGTX]+)$`)
)

// Structured field names recognized in RawQuery.Fields. When present they
// always override values parsed from the free text.
const (
	fieldThreshold = "threshold"
	fieldGene      = "gene"
	fieldRef       = "ref"
	fieldPos       = "pos"
	fieldAlt       = "alt"
)

// Classify normalizes a raw query into a typed query. It returns the typed
// query, a residual copy of the raw query with the consumed fields removed,
// and whether classification succeeded. The input is never mutated.
//
// ok=false means the text matches no known pattern; the caller should treat
// the query as an ordinary free-text filter rather than a fingerprintable
// search.
func Classify(raw types.RawQuery) (types.TypedQuery, types.RawQuery, bool) {
	if raw.Text == "" {
		return types.TypedQuery{}, raw.Clone(), false
	}

	if sequenceRe.MatchString(raw.Text) {
		return classifySequence(raw)
	}
	if m := proteinVariantRe.FindStringSubmatch(raw.Text); m != nil {
		return classifyProteinVariant(raw, m)
	}
	if m := dnaVariantRe.FindStringSubmatch(raw.Text); m != nil {
		return classifyDNAVariant(raw, m)
	}

	return types.TypedQuery{}, raw.Clone(), false
}

func classifySequence(raw types.RawQuery) (types.TypedQuery, types.RawQuery, bool) {
	threshold := types.DefaultSequenceThreshold
	residual := raw.Clone()
	residual.Text = ""

	if v, ok := residual.Fields[fieldThreshold]; ok {
		if t, err := toInt(v); err == nil {
			threshold = t
		}
		delete(residual.Fields, fieldThreshold)
	}

	typed := types.TypedQuery{
		Type: types.QueryTypeSequence,
		Sequence: &types.SequenceQuery{
			Sequence:  raw.Text,
			Threshold: threshold,
		},
	}
	return typed, residual, true
}

func classifyProteinVariant(raw types.RawQuery, m []string) (types.TypedQuery, types.RawQuery, bool) {
	pos, err := strconv.Atoi(m[3])
	if err != nil {
		return types.TypedQuery{}, raw.Clone(), false
	}

	q := types.ProteinVariantQuery{
		Gene: m[1],
		Ref:  m[2],
		Pos:  pos,
		Alt:  m[4],
	}

	residual := raw.Clone()
	residual.Text = ""
	applyOverrides(residual.Fields, &q.Gene, &q.Ref, &q.Pos, &q.Alt)

	typed := types.TypedQuery{
		Type:           types.QueryTypeProteinVariant,
		ProteinVariant: &q,
	}
	return typed, residual, true
}

func classifyDNAVariant(raw types.RawQuery, m []string) (types.TypedQuery, types.RawQuery, bool) {
	pos, err := strconv.Atoi(m[2])
	if err != nil {
		return types.TypedQuery{}, raw.Clone(), false
	}

	q := types.DNAVariantQuery{
		Ref: m[1],
		Pos: pos,
		Alt: m[3],
	}

	residual := raw.Clone()
	residual.Text = ""

	// DNA variants have no gene field; reuse the ref/pos/alt override rule
	var gene string
	applyOverrides(residual.Fields, &gene, &q.Ref, &q.Pos, &q.Alt)

	typed := types.TypedQuery{
		Type:       types.QueryTypeDNAVariant,
		DNAVariant: &q,
	}
	return typed, residual, true
}

// applyOverrides consumes explicit gene/ref/pos/alt fields, replacing the
// pattern-derived values. Structured input always wins over parsed text.
func applyOverrides(fields map[string]any, gene *string, ref *string, pos *int, alt *string) {
	if fields == nil {
		return
	}
	if v, ok := fields[fieldGene]; ok {
		if s, sok := v.(string); sok && s != "" {
			*gene = s
		}
		delete(fields, fieldGene)
	}
	if v, ok := fields[fieldRef]; ok {
		if s, sok := v.(string); sok && s != "" {
			*ref = s
		}
		delete(fields, fieldRef)
	}
	if v, ok := fields[fieldPos]; ok {
		if p, err := toInt(v); err == nil {
			*pos = p
		}
		delete(fields, fieldPos)
	}
	if v, ok := fields[fieldAlt]; ok {
		if s, sok := v.(string); sok && s != "" {
			*alt = s
		}
		delete(fields, fieldAlt)
	}
}

// toInt coerces the numeric representations that survive JSON decoding
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
