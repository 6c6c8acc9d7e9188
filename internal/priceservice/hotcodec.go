package priceservice

import (
	"encoding/json"
	"fmt"
)

func errVersionMismatch(path string, got int) error {
	return fmt.Errorf("cache file %s has version %d, expected %d (migration required)", path, got, historicalCacheVersion)
}

func encodeHotEntry(r PriceReading) string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeHotEntry(s string) (PriceReading, bool) {
	var r PriceReading
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return PriceReading{}, false
	}
	return r, true
}
