package quotes

import "testing"

func TestRandomReturnsKnownQuote(t *testing.T) {
	known := map[Quote]bool{}
	for _, quote := range All() {
		known[quote] = true
	}

	for i := 0; i < 50; i++ {
		quote := Random()
		if !known[quote] {
			t.Fatalf("random quote %+v is not part of the quote set", quote)
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	first := All()
	first[0].Text = "mutated"
	if All()[0].Text == "mutated" {
		t.Fatalf("mutating the returned slice must not change the quote set")
	}

	for _, quote := range All() {
		if quote.Text == "" || quote.Author == "" {
			t.Fatalf("quote set contains an empty entry: %+v", quote)
		}
	}
}
