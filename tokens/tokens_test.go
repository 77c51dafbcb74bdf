package tokens

import "testing"

func TestCounterFallsBackForUnknownModel(t *testing.T) {
	// Gateway model aliases have no tiktoken encoding, so the counter falls
	// back to the default. Encoding data may need a network fetch.
	counter, err := NewCounter("sonnet")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}

	if got := counter.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if got := counter.Count("Hello, world!"); got == 0 {
		t.Error("expected non-zero token count")
	}
}
