package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/emberchain/chainstate/internal/storage"
	"github.com/emberchain/chainstate/pkg/types"
)

// ErrCorruptLedger marks a stored ledger record that failed to decode.
var ErrCorruptLedger = errors.New("ledger: corrupt record")

// prefixRate is the reward-rate namespace: r/<height(8)> -> rate JSON.
var prefixRate = []byte("r/")

// LookupPolicy selects how RateAt resolves a height.
type LookupPolicy int

const (
	// LookupExact returns only a snapshot recorded at exactly the queried
	// height.
	LookupExact LookupPolicy = iota
	// LookupFloor returns the newest snapshot at or before the queried
	// height, mirroring the balance ledger's read path.
	LookupFloor
)

// RewardRateView persists per-height reward-rate snapshots.
type RewardRateView struct {
	db     storage.DB
	policy LookupPolicy
}

// NewRewardRateView creates a reward-rate view with the given lookup policy.
func NewRewardRateView(db storage.DB, policy LookupPolicy) *RewardRateView {
	return &RewardRateView{db: db, policy: policy}
}

type rateRecord struct {
	Address types.Address `json:"address"`
	Rate    float64       `json:"rate"`
}

func rateKey(height uint64) []byte {
	key := make([]byte, len(prefixRate)+8)
	copy(key, prefixRate)
	binary.BigEndian.PutUint64(key[len(prefixRate):], height)
	return key
}

// RecordRate persists one snapshot row for the height.
func (v *RewardRateView) RecordRate(addr types.Address, rate float64, height uint64) error {
	data, err := encodeRate(&rateRecord{Address: addr, Rate: rate})
	if err != nil {
		return err
	}
	if err := v.db.Put(rateKey(height), data); err != nil {
		return fmt.Errorf("record rate: %w", err)
	}
	return nil
}

// RateAt returns the snapshot for the height under the view's lookup
// policy. Returns storage.ErrNotFound when no snapshot qualifies.
func (v *RewardRateView) RateAt(height uint64) (types.Address, float64, error) {
	switch v.policy {
	case LookupFloor:
		return v.rateAtOrBefore(height)
	default:
		return v.rateExact(height)
	}
}

func (v *RewardRateView) rateExact(height uint64) (types.Address, float64, error) {
	data, err := v.db.Get(rateKey(height))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Address{}, 0, err
		}
		return types.Address{}, 0, fmt.Errorf("rate get: %w", err)
	}
	rec, err := decodeRate(data)
	if err != nil {
		return types.Address{}, 0, fmt.Errorf("rate at %d: %w", height, err)
	}
	return rec.Address, rec.Rate, nil
}

func (v *RewardRateView) rateAtOrBefore(height uint64) (types.Address, float64, error) {
	var found *rateRecord
	errStop := errors.New("stop")
	err := v.db.ForEach(prefixRate, func(key, value []byte) error {
		if len(key) != len(prefixRate)+8 {
			return fmt.Errorf("%w: malformed rate key of %d bytes", ErrCorruptLedger, len(key))
		}
		h := binary.BigEndian.Uint64(key[len(prefixRate):])
		if h > height {
			return errStop
		}
		rec, err := decodeRate(value)
		if err != nil {
			return fmt.Errorf("rate at %d: %w", h, err)
		}
		found = rec
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return types.Address{}, 0, fmt.Errorf("rate scan: %w", err)
	}
	if found == nil {
		return types.Address{}, 0, storage.ErrNotFound
	}
	return found.Address, found.Rate, nil
}
