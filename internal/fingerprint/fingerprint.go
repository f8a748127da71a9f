// Package fingerprint derives the stable content hash that identifies a typed
// query. The fingerprint is the cache and record key for the whole search
// pipeline: the same logical query always produces the same fingerprint across
// process restarts, and any change to the query type or content changes it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/atlasbio/atlas-search/pkg/types"
)

// Fingerprint computes the content hash of a typed query.
//
// The canonical form is a "|"-joined string with a fixed field order per query
// type, so map iteration or key insertion order can never leak into the
// digest. SHA-256 is used for width, not security; collisions across distinct
// queries would alias two searches, which a 256-bit digest makes negligible.
func Fingerprint(q types.TypedQuery) string {
	var data strings.Builder
	data.WriteString(string(q.Type))

	switch q.Type {
	case types.QueryTypeSequence:
		if q.Sequence != nil {
			data.WriteString("|")
			data.WriteString(q.Sequence.Sequence)
			data.WriteString("|")
			data.WriteString(strconv.Itoa(q.Sequence.Threshold))
		}
	case types.QueryTypeProteinVariant:
		if q.ProteinVariant != nil {
			data.WriteString("|")
			data.WriteString(q.ProteinVariant.Gene)
			data.WriteString("|")
			data.WriteString(q.ProteinVariant.Ref)
			data.WriteString("|")
			data.WriteString(strconv.Itoa(q.ProteinVariant.Pos))
			data.WriteString("|")
			data.WriteString(q.ProteinVariant.Alt)
		}
	case types.QueryTypeDNAVariant:
		if q.DNAVariant != nil {
			data.WriteString("|")
			data.WriteString(q.DNAVariant.Ref)
			data.WriteString("|")
			data.WriteString(strconv.Itoa(q.DNAVariant.Pos))
			data.WriteString("|")
			data.WriteString(q.DNAVariant.Alt)
		}
	}

	sum := sha256.Sum256([]byte(data.String()))
	return hex.EncodeToString(sum[:])
}
