package session

import (
	"math"
	"sync"
	"testing"
)

func table() PriceTable {
	return PriceTable{
		Version: "test-1",
		Models: map[string]Price{
			"cheap": {PromptPer1K: 0.001, CompletionPer1K: 0.002},
		},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

func TestRecordPricesCall(t *testing.T) {
	s := New(table())
	cost := s.Record("cheap", 1000, 500)
	if !approx(cost, 0.001+0.5*0.002) {
		t.Errorf("cost = %v", cost)
	}
	totals := s.Totals()
	if totals.Calls != 1 || totals.PromptTokens != 1000 || totals.CompletionTokens != 500 {
		t.Errorf("totals = %+v", totals)
	}
	if !approx(totals.CostUSD, cost) {
		t.Errorf("CostUSD = %v, want %v", totals.CostUSD, cost)
	}
}

func TestRecordAccumulates(t *testing.T) {
	s := New(table())
	first := s.Record("cheap", 100, 100)
	second := s.Record("cheap", 200, 200)
	totals := s.Totals()
	if totals.Calls != 2 {
		t.Errorf("Calls = %d", totals.Calls)
	}
	if !approx(totals.CostUSD, first+second) {
		t.Errorf("CostUSD = %v, want %v", totals.CostUSD, first+second)
	}
}

func TestRecordUnknownModel(t *testing.T) {
	s := New(table())
	cost := s.Record("mystery", 1000, 1000)
	if cost != 0 {
		t.Errorf("unknown model cost = %v, want 0", cost)
	}
	totals := s.Totals()
	if totals.PromptTokens != 1000 || totals.CompletionTokens != 1000 {
		t.Error("token counts should still be recorded")
	}
}

func TestRecordConcurrent(t *testing.T) {
	s := New(table())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record("cheap", 10, 10)
		}()
	}
	wg.Wait()
	totals := s.Totals()
	if totals.Calls != 50 || totals.PromptTokens != 500 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestSessionIdentity(t *testing.T) {
	a, b := New(table()), New(table())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("session ids = %q, %q", a.ID, b.ID)
	}
	if a.PriceVersion() != "test-1" {
		t.Errorf("PriceVersion = %q", a.PriceVersion())
	}
}

func TestDefaultPriceTableCoversConfiguredModels(t *testing.T) {
	table := DefaultPriceTable()
	if table.Version == "" {
		t.Error("price table must be versioned")
	}
	if _, ok := table.Models["gpt-4o-mini"]; !ok {
		t.Error("default chat model missing from price table")
	}
}
