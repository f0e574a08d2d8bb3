package slug

import (
	"strings"
	"testing"
)

func TestSlugifyLowercasesAndKeepsSeparators(t *testing.T) {
	got := Slugify("Services/Order-Service")
	want := "services/order-service"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSlugifyCollapsesDisallowedRuns(t *testing.T) {
	got := Slugify("hello   world!!!foo")
	want := "hello-world-foo"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSlugifyTrimsLeadingAndTrailingSeparators(t *testing.T) {
	got := Slugify("***leading and trailing***")
	if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
		t.Fatalf("slug should not start or end with a collapse separator: %q", got)
	}
}

func TestSlugifyBoundsLength(t *testing.T) {
	got := Slugify(strings.Repeat("a", MaxLength*2))
	if len(got) > MaxLength {
		t.Fatalf("slug exceeded max length: %d", len(got))
	}
}
