package store

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// EncodePostings serializes ids in the portable roaring format.
func EncodePostings(docs []int) ([]byte, error) {
	b := roaring.New()
	for _, d := range docs {
		if d < 0 {
			return nil, fmt.Errorf("negative document id %d", d)
		}
		b.Add(uint32(d))
	}
	b.RunOptimize()
	return b.ToBytes()
}

func DecodePostings(data []byte) ([]int, error) {
	b := roaring.New()
	if _, err := b.FromBuffer(data); err != nil {
		return nil, err
	}
	out := make([]int, 0, b.GetCardinality())
	for _, v := range b.ToArray() {
		out = append(out, int(v))
	}
	return out, nil
}
