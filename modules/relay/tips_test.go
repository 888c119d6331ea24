package relay

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryTipLedger_CreditIsOrderIndependent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		amounts []float64
		want    float64
	}{
		{name: "5 then 3", amounts: []float64{5, 3}, want: 8},
		{name: "3 then 5", amounts: []float64{3, 5}, want: 8},
		{name: "negative amounts are accepted", amounts: []float64{5, -2}, want: 3},
		{name: "no credits", amounts: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewMemoryTipLedger()
			for _, a := range tt.amounts {
				if _, err := l.Credit(ctx, "bob", a); err != nil {
					t.Fatalf("Credit() unexpected error: %v", err)
				}
			}
			got, err := l.Total(ctx, "bob")
			if err != nil {
				t.Fatalf("Total() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Total() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryTipLedger_ConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryTipLedger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Credit(ctx, "bob", 1)
		}()
	}
	wg.Wait()

	if got, _ := l.Total(ctx, "bob"); got != 100 {
		t.Errorf("Total() = %v, want 100", got)
	}
}
