package httpmiddleware

import "testing"

func TestTokenBucketExhaustion(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d denied within capacity", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Fatal("request allowed past capacity")
	}
	// Other clients have their own bucket.
	if !l.allow("5.6.7.8") {
		t.Fatal("independent client denied")
	}
}
