package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// localDims keeps the offline vectors small; dedup only needs enough
// dimensions to separate unrelated claims.
const localDims = 256

// LocalClient embeds text without any network dependency: each token hashes
// into a few dimensions of a fixed-size vector, which is then L2-normalized.
// Identical texts always produce identical vectors, which is all the curator's
// dedup pass needs to run deterministically offline.
type LocalClient struct{}

func NewLocalClient() *LocalClient {
	return &LocalClient{}
}

func (c *LocalClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, localDims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		// Spread each token across three dimensions with alternating sign so
		// short texts still get distinguishable directions.
		for i := uint32(0); i < 3; i++ {
			idx := (sum + i*2654435761) % localDims
			sign := float32(1)
			if (sum>>i)&1 == 1 {
				sign = -1
			}
			vec[idx] += sign
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}
