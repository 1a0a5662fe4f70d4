package dnspipe

import (
	"net/netip"
	"reflect"
	"testing"
)

func mkAddrs(ss ...string) []AddressUpdate {
	var out []AddressUpdate
	for _, s := range ss {
		out = append(out, NewAddressUpdate(netip.MustParseAddr(s)))
	}
	return out
}

func addrStrings(updates []AddressUpdate) []string {
	out := make([]string, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.String())
	}
	return out
}

func TestFamilyFilters(t *testing.T) {
	in := mkAddrs("192.168.2.1", "fe80::1", "10.0.0.1", "2001:db8::1")

	ipv4, err := newFamilyFilter(FamilyIPv4)()
	if err != nil {
		t.Fatalf("constructing ipv4 filter: %s", err)
	}
	if got := addrStrings(ipv4.Apply(in)); !reflect.DeepEqual(got, []string{"192.168.2.1", "10.0.0.1"}) {
		t.Errorf("ipv4 filter: got %v", got)
	}

	ipv6, err := newFamilyFilter(FamilyIPv6)()
	if err != nil {
		t.Fatalf("constructing ipv6 filter: %s", err)
	}
	if got := addrStrings(ipv6.Apply(in)); !reflect.DeepEqual(got, []string{"fe80::1", "2001:db8::1"}) {
		t.Errorf("ipv6 filter: got %v", got)
	}

	if _, err := newFamilyFilter(FamilyIPv4)("bogus"); err == nil {
		t.Error("expected an error for unexpected arguments")
	}
}

func TestPrivatePublicFilters(t *testing.T) {
	in := mkAddrs(
		"192.168.2.1", // private v4
		"8.8.8.8",     // public v4
		"fe80::1",     // link-local: neither private-use nor global
		"fd00::1",     // unique-local: private
		"2001:db8::1", // global-range v6
	)

	private, err := newPrivateFilter()
	if err != nil {
		t.Fatalf("constructing private filter: %s", err)
	}
	if got := addrStrings(private.Apply(in)); !reflect.DeepEqual(got, []string{"192.168.2.1", "fd00::1"}) {
		t.Errorf("private filter: got %v", got)
	}

	public, err := newPublicFilter()
	if err != nil {
		t.Fatalf("constructing public filter: %s", err)
	}
	if got := addrStrings(public.Apply(in)); !reflect.DeepEqual(got, []string{"8.8.8.8", "2001:db8::1"}) {
		t.Errorf("public filter: got %v", got)
	}
}

func TestNthFilter(t *testing.T) {
	in := mkAddrs("10.0.0.1", "10.0.0.2", "10.0.0.3")

	tests := []struct {
		index string
		want  []string
	}{
		{"0", []string{"10.0.0.1"}},
		{"1", []string{"10.0.0.2"}},
		{"2", []string{"10.0.0.3"}},
		{"-1", []string{"10.0.0.3"}},
		{"-3", []string{"10.0.0.1"}},
		{"3", nil},
		{"-4", nil},
	}
	for _, tt := range tests {
		f, err := newNthFilter(tt.index)
		if err != nil {
			t.Fatalf("nth(%s): unexpected constructor error: %s", tt.index, err)
		}
		got := addrStrings(f.Apply(in))
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("nth(%s): expected %v; got %v", tt.index, tt.want, got)
		}
	}
}

func TestNthFilterConstructorErrors(t *testing.T) {
	if _, err := newNthFilter("one"); err == nil {
		t.Error("expected an error for a non-integer index")
	}
	if _, err := newNthFilter(); err == nil {
		t.Error("expected an error for a missing index")
	}
	if _, err := newNthFilter("1", "2"); err == nil {
		t.Error("expected an error for too many arguments")
	}
}

func TestFirstLastEquivalences(t *testing.T) {
	inputs := [][]AddressUpdate{
		nil,
		mkAddrs("10.0.0.1"),
		mkAddrs("10.0.0.1", "2001:db8::1", "10.0.0.2"),
	}
	first, _ := newFirstFilter()
	last, _ := newLastFilter()
	nth0, _ := newNthFilter("0")
	nthNeg1, _ := newNthFilter("-1")

	for _, in := range inputs {
		if !reflect.DeepEqual(first.Apply(in), nth0.Apply(in)) {
			t.Errorf("first != nth(0) for input %v", in)
		}
		if !reflect.DeepEqual(last.Apply(in), nthNeg1.Apply(in)) {
			t.Errorf("last != nth(-1) for input %v", in)
		}
	}

	if got := first.Apply(nil); len(got) != 0 {
		t.Errorf("first on empty input: expected empty; got %v", got)
	}
}

func TestSortedFilter(t *testing.T) {
	f, err := newSortedFilter()
	if err != nil {
		t.Fatalf("constructing sorted filter: %s", err)
	}

	in := mkAddrs("2001:db8::2", "10.0.0.2", "2001:db8::1", "10.0.0.1")
	want := []string{"10.0.0.1", "10.0.0.2", "2001:db8::1", "2001:db8::2"}
	if got := addrStrings(f.Apply(in)); !reflect.DeepEqual(got, want) {
		t.Errorf("sorted filter: expected %v; got %v", want, got)
	}

	// The input must not be reordered in place.
	if in[0].String() != "2001:db8::2" {
		t.Error("sorted filter modified its input")
	}

	if got := f.Apply(nil); len(got) != 0 {
		t.Errorf("sorted on empty input: expected empty; got %v", got)
	}
}

func TestFiltersArePure(t *testing.T) {
	in := mkAddrs("2001:db8::2", "10.0.0.2", "192.168.2.1", "fe80::1")

	ctors := map[string]FilterConstructor{
		"ipv4":    newFamilyFilter(FamilyIPv4),
		"ipv6":    newFamilyFilter(FamilyIPv6),
		"private": newPrivateFilter,
		"public":  newPublicFilter,
		"first":   newFirstFilter,
		"last":    newLastFilter,
		"sorted":  newSortedFilter,
	}
	for name, ctor := range ctors {
		f, err := ctor()
		if err != nil {
			t.Fatalf("constructing %s: %s", name, err)
		}
		a := f.Apply(in)
		b := f.Apply(in)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("filter %s is not pure: %v != %v", name, a, b)
		}
	}
}
