package pricing

import (
	"testing"

	"github.com/azamatrasuli/business-crm-sub000/internal/model"
)

func TestPriceLookup(t *testing.T) {
	table := DefaultTable()

	price, err := table.Price(model.Combo25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2500 {
		t.Fatalf("combo25 must cost 2500 kopecks, got %d", price)
	}

	price, err = table.Price(model.Combo35)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 3500 {
		t.Fatalf("combo35 must cost 3500 kopecks, got %d", price)
	}
}

func TestPriceUnknownCombo(t *testing.T) {
	table := DefaultTable()

	if _, err := table.Price(model.ComboType("combo99")); err == nil {
		t.Fatalf("expected error for unknown combo")
	}
}
