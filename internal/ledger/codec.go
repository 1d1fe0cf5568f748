package ledger

import (
	"encoding/json"
	"fmt"
)

func encodeRate(rec *rateRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("rate marshal: %w", err)
	}
	return data, nil
}

func decodeRate(data []byte) (*rateRecord, error) {
	var rec rateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLedger, err)
	}
	return &rec, nil
}
