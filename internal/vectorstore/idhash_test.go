package vectorstore

import "testing"

func TestInternalIDDeterministic(t *testing.T) {
	a := InternalID("doc-1_chunk_0")
	b := InternalID("doc-1_chunk_0")
	if a != b {
		t.Errorf("same id hashed differently: %d vs %d", a, b)
	}
}

func TestInternalIDNonNegative(t *testing.T) {
	ids := []string{"", "a", "doc-1", "x_chunk_99", "ação-penal-937", "habeas corpus 152.752/PR"}
	for _, id := range ids {
		if got := InternalID(id); got < 0 {
			t.Errorf("InternalID(%q) = %d, want non-negative", id, got)
		}
	}
}

func TestInternalIDDistinct(t *testing.T) {
	if InternalID("doc-1") == InternalID("doc-2") {
		t.Error("distinct ids collided")
	}
	if InternalID("doc-1") == idSentinel {
		t.Error("hash produced the sentinel value")
	}
}
