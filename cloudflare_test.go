package dnspipe

import (
	"context"
	"errors"
	"net/netip"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

// fakeCloudflare fakes the narrow slice of the Cloudflare API the updater
// uses. Zone probes for unknown names fail with an error,
// the same way the real API rejects a name the token cannot see.
type fakeCloudflare struct {
	zones   map[string]cloudflare.Zone
	records []cloudflare.DNSRecord

	zoneProbes      []string
	listRecordCalls int
	created         []cloudflare.CreateDNSRecordParams
	updated         []cloudflare.UpdateDNSRecordParams
}

func (f *fakeCloudflare) ListZones(_ context.Context, z ...string) ([]cloudflare.Zone, error) {
	f.zoneProbes = append(f.zoneProbes, z...)
	if len(z) == 1 {
		if zone, ok := f.zones[z[0]]; ok {
			return []cloudflare.Zone{zone}, nil
		}
	}
	return nil, errors.New("Invalid request: invalid zone identifier")
}

func (f *fakeCloudflare) ListDNSRecords(_ context.Context, _ *cloudflare.ResourceContainer, _ cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error) {
	f.listRecordCalls++
	return f.records, nil, nil
}

func (f *fakeCloudflare) CreateDNSRecord(_ context.Context, _ *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error) {
	f.created = append(f.created, params)
	return cloudflare.DNSRecord{ID: "new", Type: params.Type, Name: params.Name, Content: params.Content}, nil
}

func (f *fakeCloudflare) UpdateDNSRecord(_ context.Context, _ *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error) {
	f.updated = append(f.updated, params)
	return cloudflare.DNSRecord{ID: params.ID, Type: params.Type, Name: params.Name, Content: params.Content}, nil
}

func testCloudflareUpdater(fake *fakeCloudflare) (*cloudflareUpdater, *time.Time) {
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	u := &cloudflareUpdater{
		name:     "home",
		hostname: "a.b.example.com",
		api:      fake,
		now:      func() time.Time { return now },
	}
	return u, &now
}

func exampleZone() map[string]cloudflare.Zone {
	return map[string]cloudflare.Zone{
		"example.com": {ID: "zone1", Name: "example.com"},
	}
}

func TestResolveZoneAscent(t *testing.T) {
	fake := &fakeCloudflare{zones: exampleZone()}
	u, _ := testCloudflareUpdater(fake)

	zone, err := u.resolveZone(context.Background())
	if err != nil {
		t.Fatalf("resolveZone failed: %s", err)
	}
	if zone.ID != "zone1" {
		t.Errorf("expected zone1; got %q", zone.ID)
	}
	want := []string{"a.b.example.com", "b.example.com", "example.com"}
	if !reflect.DeepEqual(fake.zoneProbes, want) {
		t.Errorf("expected ascent probes %v; got %v", want, fake.zoneProbes)
	}
}

func TestResolveZoneNotFound(t *testing.T) {
	fake := &fakeCloudflare{zones: map[string]cloudflare.Zone{}}
	u, _ := testCloudflareUpdater(fake)

	_, err := u.resolveZone(context.Background())
	if err == nil {
		t.Fatal("expected an error when no zone matches")
	}
	if !IsUserError(err) {
		t.Errorf("expected a user error; got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "a.b.example.com") {
		t.Errorf("expected the error to name the hostname; got %q", err)
	}
}

func TestResolveZoneCache(t *testing.T) {
	fake := &fakeCloudflare{zones: exampleZone()}
	u, now := testCloudflareUpdater(fake)

	if _, err := u.resolveZone(context.Background()); err != nil {
		t.Fatalf("resolveZone failed: %s", err)
	}
	probes := len(fake.zoneProbes)

	// Within the freshness window the cached zone is trusted.
	*now = now.Add(zoneFreshness - time.Minute)
	if _, err := u.resolveZone(context.Background()); err != nil {
		t.Fatalf("resolveZone failed: %s", err)
	}
	if len(fake.zoneProbes) != probes {
		t.Errorf("expected no remote calls while cached; got %d extra", len(fake.zoneProbes)-probes)
	}

	// After the window expires the zone is looked up again.
	*now = now.Add(2 * time.Minute)
	if _, err := u.resolveZone(context.Background()); err != nil {
		t.Fatalf("resolveZone failed: %s", err)
	}
	if len(fake.zoneProbes) == probes {
		t.Error("expected a fresh lookup after the cache expired")
	}
}

func TestNeedsUpdate(t *testing.T) {
	record := func(rrtype, content string) cloudflare.DNSRecord {
		return cloudflare.DNSRecord{ID: "rec1", Type: rrtype, Name: "a.b.example.com", Content: content}
	}
	v4 := NewAddressUpdate(netip.MustParseAddr("203.0.113.7"))

	tests := []struct {
		name    string
		records []cloudflare.DNSRecord
		want    bool
	}{
		{"same content", []cloudflare.DNSRecord{record("A", "203.0.113.7")}, false},
		{"different content", []cloudflare.DNSRecord{record("A", "203.0.113.8")}, true},
		{"no record", nil, true},
		{"only other types", []cloudflare.DNSRecord{record("TXT", "v=spf1"), record("AAAA", "2001:db8::1")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCloudflare{zones: exampleZone(), records: tt.records}
			u, _ := testCloudflareUpdater(fake)

			got, err := u.NeedsUpdate(context.Background(), v4)
			if err != nil {
				t.Fatalf("NeedsUpdate failed: %s", err)
			}
			if got != tt.want {
				t.Errorf("expected %v; got %v", tt.want, got)
			}
		})
	}
}

func TestNeedsUpdateUnsupportedFamily(t *testing.T) {
	fake := &fakeCloudflare{zones: exampleZone()}
	u, _ := testCloudflareUpdater(fake)

	_, err := u.NeedsUpdate(context.Background(), AddressUpdate{Family: FamilyOther})
	if err == nil {
		t.Fatal("expected an error for an address family with no record type")
	}
	if !strings.Contains(err.Error(), "unsupported address family") {
		t.Errorf("expected an unsupported-family error; got %q", err)
	}
}

func TestFindRecordMatching(t *testing.T) {
	fake := &fakeCloudflare{
		zones: exampleZone(),
		records: []cloudflare.DNSRecord{
			{ID: "txt", Type: "TXT", Name: "a.b.example.com", Content: "v=spf1"},
			{ID: "weird", Type: "SVCB", Name: "a.b.example.com", Content: "?"},
			{ID: "other-name", Type: "A", Name: "b.example.com", Content: "203.0.113.9"},
			{ID: "match", Type: "A", Name: "A.B.Example.COM.", Content: "203.0.113.7"},
		},
	}
	u, _ := testCloudflareUpdater(fake)

	rec, err := u.findRecord(context.Background(), NewAddressUpdate(netip.MustParseAddr("203.0.113.7")))
	if err != nil {
		t.Fatalf("findRecord failed: %s", err)
	}
	if rec == nil || rec.ID != "match" {
		t.Fatalf("expected the case-insensitive A record match; got %+v", rec)
	}
}

func TestUpdatePatchesExistingRecord(t *testing.T) {
	fake := &fakeCloudflare{
		zones: exampleZone(),
		records: []cloudflare.DNSRecord{
			{ID: "rec1", Type: "A", Name: "a.b.example.com", Content: "203.0.113.8"},
		},
	}
	u, _ := testCloudflareUpdater(fake)

	err := u.Update(context.Background(), NewAddressUpdate(netip.MustParseAddr("203.0.113.7")))
	if err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	if len(fake.created) != 0 {
		t.Errorf("expected no created records; got %+v", fake.created)
	}
	if len(fake.updated) != 1 {
		t.Fatalf("expected one patched record; got %+v", fake.updated)
	}
	if got := fake.updated[0]; got.ID != "rec1" || got.Content != "203.0.113.7" || got.Type != "A" {
		t.Errorf("unexpected patch params: %+v", got)
	}
}

func TestUpdateCreatesMissingRecord(t *testing.T) {
	fake := &fakeCloudflare{zones: exampleZone()}
	u, _ := testCloudflareUpdater(fake)
	u.createRecords = true

	err := u.Update(context.Background(), NewAddressUpdate(netip.MustParseAddr("2001:db8::7")))
	if err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected one created record; got %+v", fake.created)
	}
	got := fake.created[0]
	if got.Type != "AAAA" || got.Name != "a.b.example.com" || got.Content != "2001:db8::7" || got.TTL != 1 {
		t.Errorf("unexpected create params: %+v", got)
	}
}

func TestUpdateCreateDisallowed(t *testing.T) {
	fake := &fakeCloudflare{zones: exampleZone()}
	u, _ := testCloudflareUpdater(fake)

	err := u.Update(context.Background(), NewAddressUpdate(netip.MustParseAddr("203.0.113.7")))
	if err == nil {
		t.Fatal("expected an error when the record is missing and creation is disallowed")
	}
	if !IsUserError(err) {
		t.Errorf("expected a user error; got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "create_records") {
		t.Errorf("expected the error to name the create_records option; got %q", err)
	}
	if len(fake.created) != 0 {
		t.Errorf("expected no created records; got %+v", fake.created)
	}
}
