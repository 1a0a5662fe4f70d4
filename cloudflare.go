package dnspipe

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
)

// zoneFreshness is how long a resolved zone is trusted before the next
// cycle looks it up again. Zones essentially never move,
// so this only bounds how stale a deleted-and-recreated zone ID can get.
const zoneFreshness = 4 * time.Hour

// cloudflareAPI is the slice of the Cloudflare client that the updater uses.
type cloudflareAPI interface {
	ListZones(ctx context.Context, z ...string) ([]cloudflare.Zone, error)
	ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error)
}

// cloudflareUpdater manages one hostname in a Cloudflare-hosted zone.
//
// Authentication is done with API access tokens. Global API keys are not
// supported. The token needs Zone->DNS->Edit scoped to the zone where the
// hostname lives; nothing broader.
type cloudflareUpdater struct {
	SubscriptionList
	name          string
	hostname      string
	createRecords bool
	api           cloudflareAPI
	now           func() time.Time
	zone          zoneCache
}

func newCloudflareUpdater(name string, cfg UpdaterConfig) (Updater, error) {
	token, err := cfg.APIToken()
	if err != nil {
		return nil, fmt.Errorf("updater %q: %w", name, err)
	}
	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("updater %q: creating cloudflare api client: %w", name, err)
	}
	return &cloudflareUpdater{
		name:          name,
		hostname:      cfg.Hostname,
		createRecords: cfg.CreateRecords,
		api:           api,
		now:           time.Now,
	}, nil
}

func (u *cloudflareUpdater) Name() string { return u.name }

func (u *cloudflareUpdater) Hostname() string { return u.hostname }

// NeedsUpdate asks the Cloudflare API directly instead of resolving the
// hostname through public DNS: the API reflects the authoritative state
// immediately, before any propagation.
func (u *cloudflareUpdater) NeedsUpdate(ctx context.Context, addr AddressUpdate) (bool, error) {
	rec, err := u.findRecord(ctx, addr)
	if err != nil {
		return false, err
	}
	if rec == nil {
		// No resource record yet; Update will create it.
		return true, nil
	}
	content, err := netip.ParseAddr(rec.Content)
	if err != nil {
		return false, fmt.Errorf("record %s for %s holds %q, which is not an IP address", rec.ID, u.hostname, rec.Content)
	}
	return content.Unmap() != addr.Addr, nil
}

func (u *cloudflareUpdater) Update(ctx context.Context, addr AddressUpdate) error {
	zone, err := u.resolveZone(ctx)
	if err != nil {
		return err
	}
	rec, err := u.findRecord(ctx, addr)
	if err != nil {
		return err
	}
	rc := cloudflare.ZoneIdentifier(zone.ID)

	if rec != nil {
		_, err = u.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
			ID:      rec.ID,
			Type:    rec.Type,
			Name:    rec.Name,
			Content: addr.String(),
		})
		if err != nil {
			return fmt.Errorf("updating record %s for %s: %w", rec.ID, u.hostname, err)
		}
		return nil
	}

	if !u.createRecords {
		return userErrorf("DNS record missing for %s, and create_records is not enabled for updater %q", u.hostname, u.name)
	}
	rrtype, _ := addr.RecordType()
	// TTL of 1 tells Cloudflare to choose automatically.
	_, err = u.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
		Type:    dns.TypeToString[rrtype],
		Name:    u.hostname,
		Content: addr.String(),
		TTL:     1,
		Comment: "managed by dnspipe",
	})
	if err != nil {
		return fmt.Errorf("creating %s record for %s: %w", dns.TypeToString[rrtype], u.hostname, err)
	}
	log.Info().Str("updater", u.name).Str("hostname", u.hostname).Str("type", dns.TypeToString[rrtype]).Msg("created record")
	return nil
}

// findRecord returns the existing record for the hostname whose type matches
// the address family, or nil when no such record exists.
// Records of types this program does not understand are skipped, not errors.
func (u *cloudflareUpdater) findRecord(ctx context.Context, addr AddressUpdate) (*cloudflare.DNSRecord, error) {
	rrtype, ok := addr.RecordType()
	if !ok {
		return nil, userErrorf("unsupported address family %s for updater %q", addr.Family, u.name)
	}
	zone, err := u.resolveZone(ctx)
	if err != nil {
		return nil, err
	}
	records, _, err := u.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.ListDNSRecordsParams{
		Name: strings.TrimSuffix(dns.CanonicalName(u.hostname), "."),
	})
	if err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", u.hostname, err)
	}
	for i, rec := range records {
		if !dnsNamesEqual(rec.Name, u.hostname) {
			continue
		}
		if dns.StringToType[rec.Type] != rrtype {
			continue
		}
		return &records[i], nil
	}
	return nil, nil
}

// resolveZone finds the zone that contains the hostname, caching the answer.
//
// Listing all zones requires a broad account-level permission that a
// single-zone token does not have, so instead of enumerating,
// the search probes by exact name: first the full hostname,
// then each parent domain in turn until a zone matches.
// An API error during a probe means the candidate is not a zone this token
// can see, and the search moves on to the parent.
func (u *cloudflareUpdater) resolveZone(ctx context.Context) (*cloudflare.Zone, error) {
	if zone, ok := u.zone.get(zoneFreshness, u.now()); ok {
		return zone, nil
	}

	candidate := strings.TrimSuffix(dns.CanonicalName(u.hostname), ".")
	for candidate != "" {
		zones, err := u.api.ListZones(ctx, candidate)
		if err != nil {
			log.Debug().Str("updater", u.name).Str("candidate", candidate).Err(err).Msg("zone probe rejected; trying parent")
		}
		for i, zone := range zones {
			if dnsNamesEqual(zone.Name, candidate) {
				u.zone.set(&zones[i], u.now())
				return &zones[i], nil
			}
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}
	return nil, userErrorf("could not find the zone for %s: either it is the wrong name or the access token does not have sufficient permissions to read the zone", u.hostname)
}

// zoneCache holds the updater's private view of its zone.
// Invariant: whenever zone is set, lastRefreshed is the time it was set.
// The cache is owned by a single updater and cycles for one updater never
// overlap, so no locking is needed.
type zoneCache struct {
	zone          *cloudflare.Zone
	lastRefreshed time.Time
}

func (c *zoneCache) get(window time.Duration, now time.Time) (*cloudflare.Zone, bool) {
	if c.zone == nil {
		return nil, false
	}
	if now.Sub(c.lastRefreshed) >= window {
		return nil, false
	}
	return c.zone, true
}

func (c *zoneCache) set(zone *cloudflare.Zone, now time.Time) {
	c.zone = zone
	c.lastRefreshed = now
}
