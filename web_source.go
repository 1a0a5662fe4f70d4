package dnspipe

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/buglloc/certifi"
	"github.com/karlseguin/ccache/v3"
)

// newWebSource builds a source that asks external web services for the
// host's public IP address.
//
// Each service must speak http and return status "200 OK",
// with a valid IPv4 or IPv6 address as the first line of the response body.
// The source requests from up to three of the configured services and only
// answers once the first two non-error responses agree on the IP.
// This approach is taken due to the sensitive nature of having control over
// DNS records: a single compromised or misbehaving service cannot move one.
//
// When min_interval is set, the last answer is reused for that long before
// the services are contacted again. This exists only to respect the rate
// limits some public services impose; leave it unset otherwise.
func newWebSource(_ string, cfg SourceConfig) (Provider, error) {
	if len(cfg.URLs) == 0 {
		return nil, userErrorf("web source requires at least one url")
	}
	var urls []*url.URL
	for _, u := range cfg.URLs {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, userErrorf("error parsing URL %q: %v", u, err)
		}
		urls = append(urls, pu)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		RootCAs: certifi.NewCertPool(),
	}
	ws := &webSource{
		httpClient:  &http.Client{Transport: transport},
		serviceURLs: urls,
		minInterval: cfg.MinInterval,
	}
	if cfg.MinInterval > 0 {
		ws.cache = ccache.New(ccache.Configure[[]AddressUpdate]().MaxSize(1))
	}
	return ws, nil
}

type webSource struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
	minInterval time.Duration
	cache       *ccache.Cache[[]AddressUpdate]
}

const webSourceCacheKey = "addresses"

func (ws *webSource) Addresses(ctx context.Context) ([]AddressUpdate, error) {
	if ws.cache != nil {
		if item := ws.cache.Get(webSourceCacheKey); item != nil && !item.Expired() {
			return item.Value(), nil
		}
	}
	addr, err := ws.lookupConsensus(ctx)
	if err != nil {
		return nil, err
	}
	out := []AddressUpdate{NewAddressUpdate(addr)}
	if ws.cache != nil {
		ws.cache.Set(webSourceCacheKey, out, ws.minInterval)
	}
	return out, nil
}

// lookupConsensus calls out to three of the configured services and returns
// an address once the first two non-error responses match.
// Three requests with two needed means one slow or broken service does not
// block the answer, and one wrong service cannot forge it.
func (ws *webSource) lookupConsensus(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	results := make(chan result, 2)
	const useCount = 3

	servicecount := len(ws.serviceURLs)
	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		u := ws.serviceURLs[i%servicecount]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = ws.lookup(ctx, u)

			select {
			case results <- r:
			default:
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	resultCount := 0
	var errs []error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		resultCount++ // don't increase the result count for errors
		if (ip == netip.Addr{}) {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return ip, nil
		}
	}
	if resultCount < 2 {
		return netip.Addr{}, fmt.Errorf("not enough IP lookup services responded without errors: %w", errors.Join(errs...))
	}
	return netip.Addr{}, errors.New("IP lookup services did not agree on our IP")
}

func (ws *webSource) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls eventually complete even if the caller
	// supplied context.Background with no timeout.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip, nil
}
