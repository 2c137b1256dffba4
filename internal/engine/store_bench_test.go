package engine

import (
	"context"
	"testing"

	"btce_go/internal/domain"
	"btce_go/internal/event"

	"github.com/shopspring/decimal"
)

func benchBook() *domain.DepthBook {
	levels := make([]domain.PriceLevel, 50)
	for i := range levels {
		levels[i] = domain.PriceLevel{Rate: decimal.NewFromInt(int64(100 + i)), Volume: decimal.NewFromInt(1)}
	}
	return &domain.DepthBook{Pair: "btc_usd", Asks: levels, Bids: levels}
}

// BenchmarkStore_Process measures applying one write without channel overhead.
func BenchmarkStore_Process(b *testing.B) {
	s := NewStore(1)
	book := benchBook()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		ev := event.AcquireDepthEvent()
		ev.Pair, ev.Book = "btc_usd", book
		s.process(ev)
	}
}

// BenchmarkStore_Snapshot measures a full round trip including the deep copy.
func BenchmarkStore_Snapshot(b *testing.B) {
	s := NewStore(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)
	if err := s.WriteDepth("btc_usd", benchBook()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := s.Snapshot(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkStore_SelectedPairs measures the pairs-only read the depth loop uses.
func BenchmarkStore_SelectedPairs(b *testing.B) {
	s := NewStore(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)
	if err := s.WriteDepth("btc_usd", benchBook()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := s.SelectedPairs(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
