package ledger

import (
	"errors"
	"testing"

	"github.com/emberchain/chainstate/internal/storage"
)

func TestRewardRate_ExactLookup(t *testing.T) {
	v := NewRewardRateView(storage.NewMemory(), LookupExact)
	addr := testAddr(7)

	if err := v.RecordRate(addr, 0.125, 100); err != nil {
		t.Fatalf("RecordRate() error: %v", err)
	}

	gotAddr, gotRate, err := v.RateAt(100)
	if err != nil {
		t.Fatalf("RateAt() error: %v", err)
	}
	if gotAddr != addr || gotRate != 0.125 {
		t.Errorf("RateAt(100) = (%s, %v), want (%s, 0.125)", gotAddr, gotRate, addr)
	}

	// Exact policy: a nearby height with no snapshot is a miss.
	if _, _, err := v.RateAt(101); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RateAt(101) = %v, want ErrNotFound", err)
	}
	if _, _, err := v.RateAt(99); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RateAt(99) = %v, want ErrNotFound", err)
	}
}

func TestRewardRate_FloorLookup(t *testing.T) {
	v := NewRewardRateView(storage.NewMemory(), LookupFloor)
	a1, a2 := testAddr(1), testAddr(2)

	if err := v.RecordRate(a1, 0.5, 100); err != nil {
		t.Fatalf("RecordRate() error: %v", err)
	}
	if err := v.RecordRate(a2, 0.25, 200); err != nil {
		t.Fatalf("RecordRate() error: %v", err)
	}

	cases := []struct {
		height   uint64
		wantAddr byte
		wantRate float64
	}{
		{100, 1, 0.5},
		{150, 1, 0.5},
		{200, 2, 0.25},
		{5000, 2, 0.25},
	}
	for _, c := range cases {
		gotAddr, gotRate, err := v.RateAt(c.height)
		if err != nil {
			t.Fatalf("RateAt(%d) error: %v", c.height, err)
		}
		if gotAddr != testAddr(c.wantAddr) || gotRate != c.wantRate {
			t.Errorf("RateAt(%d) = (%s, %v), want (%s, %v)",
				c.height, gotAddr, gotRate, testAddr(c.wantAddr), c.wantRate)
		}
	}

	// Before the first snapshot: miss.
	if _, _, err := v.RateAt(99); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RateAt(99) = %v, want ErrNotFound", err)
	}
}

func TestRewardRate_OverwriteSameHeight(t *testing.T) {
	v := NewRewardRateView(storage.NewMemory(), LookupExact)

	v.RecordRate(testAddr(1), 0.5, 100)
	v.RecordRate(testAddr(2), 0.75, 100)

	gotAddr, gotRate, err := v.RateAt(100)
	if err != nil {
		t.Fatalf("RateAt() error: %v", err)
	}
	if gotAddr != testAddr(2) || gotRate != 0.75 {
		t.Errorf("RateAt(100) = (%s, %v), want latest write", gotAddr, gotRate)
	}
}
