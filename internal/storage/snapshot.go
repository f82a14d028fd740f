package storage

import (
	"encoding/json"
)

// snapshotHeader is the part of a cart snapshot the backends index on.
type snapshotHeader struct {
	Lines []struct {
		ProductID string `json:"productId"`
	} `json:"lines"`
}

// productIDs extracts the distinct product ids of a serialized cart.
func productIDs(value []byte) ([]string, error) {
	var header snapshotHeader
	if err := json.Unmarshal(value, &header); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(header.Lines))
	ids := make([]string, 0, len(header.Lines))
	for _, line := range header.Lines {
		if line.ProductID == "" || seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		ids = append(ids, line.ProductID)
	}
	return ids, nil
}
