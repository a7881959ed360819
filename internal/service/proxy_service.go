package service

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	cfg "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/transfer"
)

const (
	proxyProbeTimeout     = 10 * time.Second
	proxyProbeConcurrency = 10
	assignCandidates      = 5
	defaultMaxErrors      = 3
	defaultMaxAccounts    = 3
)

type ProxyService interface {
	GetForAccount(ctx context.Context, accountID string) (string, error)
	Assign(ctx context.Context, accountID string) (string, error)
	Release(ctx context.Context, proxyURL string) error
	RotateOnError(ctx context.Context, accountID string) (string, error)
	TestAll(ctx context.Context) (map[string]bool, error)
	SyncFromFile(ctx context.Context) (added, updated int, err error)
	Statistics(ctx context.Context) (*transfer.ProxyStats, error)
}

type proxyService struct {
	cfg   cfg.Config
	pr    repository.ProxyRepository
	ar    repository.AccountRepository
	rng   *rand.Rand
	probe func(ctx context.Context, proxyURL string) bool
}

func NewProxyService(config cfg.Config, pr repository.ProxyRepository, ar repository.AccountRepository, rng *rand.Rand) ProxyService {
	s := &proxyService{cfg: config, pr: pr, ar: ar, rng: rng}
	s.probe = s.probeProxy
	return s
}

// GetForAccount returns the account's current proxy when it is still healthy,
// otherwise assigns a fresh one. Empty string means "publish without proxy".
func (s *proxyService) GetForAccount(ctx context.Context, accountID string) (string, error) {
	acc, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}

	if acc.ProxyURL != "" {
		proxy, err := s.pr.GetByURL(ctx, acc.ProxyURL)
		if err != nil {
			return "", err
		}
		if proxy != nil && proxy.IsActive {
			return acc.ProxyURL, nil
		}
	}

	return s.Assign(ctx, accountID)
}

// Assign picks an active proxy with spare capacity, randomly among the five
// least-loaded candidates so load spreads without strict round-robin. An
// account already holding a healthy proxy keeps it; reassignment is reserved
// for dead or saturated proxies, and releases the held one first.
func (s *proxyService) Assign(ctx context.Context, accountID string) (string, error) {
	acc, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}

	if acc.ProxyURL != "" {
		held, err := s.pr.GetByURL(ctx, acc.ProxyURL)
		if err != nil {
			return "", err
		}
		if held != nil && held.IsActive && held.AccountsAssigned < held.MaxAccounts {
			return held.ProxyURL, nil
		}
	}

	candidates, err := s.pr.ListAssignable(ctx)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		slog.Warn("no assignable proxy available", "account_id", accountID)
		return "", nil
	}

	if len(candidates) > assignCandidates {
		candidates = candidates[:assignCandidates]
	}
	selected := candidates[s.rng.Intn(len(candidates))]

	if acc.ProxyURL != "" {
		if err := s.pr.DecrementAssigned(ctx, acc.ProxyURL); err != nil {
			return "", err
		}
	}

	if err := s.ar.SetProxy(ctx, accountID, selected.ProxyURL); err != nil {
		return "", err
	}
	if err := s.pr.MarkAssigned(ctx, selected.ProxyURL, time.Now()); err != nil {
		return "", err
	}

	slog.Info("proxy assigned", "account_id", accountID, "proxy", selected.ProxyURL)
	return selected.ProxyURL, nil
}

func (s *proxyService) Release(ctx context.Context, proxyURL string) error {
	return s.pr.DecrementAssigned(ctx, proxyURL)
}

// RotateOnError penalizes the account's current proxy and assigns a new one.
// A proxy that exhausts its error budget stays inactive until an operator or
// a successful health probe resets it.
func (s *proxyService) RotateOnError(ctx context.Context, accountID string) (string, error) {
	acc, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}

	if acc.ProxyURL != "" {
		proxy, err := s.pr.RecordError(ctx, acc.ProxyURL)
		if err != nil {
			return "", err
		}
		if proxy != nil && !proxy.IsActive {
			slog.Warn("proxy deactivated after repeated errors", "proxy", proxy.ProxyURL, "errors", proxy.ErrorCount)
		}
		if err := s.pr.DecrementAssigned(ctx, acc.ProxyURL); err != nil {
			return "", err
		}
		if err := s.ar.SetProxy(ctx, accountID, ""); err != nil {
			return "", err
		}
	}

	return s.Assign(ctx, accountID)
}

// TestAll probes every stored proxy with bounded concurrency and updates
// health state: a working proxy is reactivated with a clean error count, a
// dead one is error-counted toward deactivation.
func (s *proxyService) TestAll(ctx context.Context) (map[string]bool, error) {
	proxies, err := s.pr.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(proxies) == 0 {
		slog.Warn("no proxies stored, nothing to test")
		return map[string]bool{}, nil
	}

	results := make(map[string]bool, len(proxies))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, proxyProbeConcurrency)

	for _, proxy := range proxies {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(p *models.Proxy) {
			defer wg.Done()
			defer func() { <-semaphore }()

			ok := s.probe(ctx, p.ProxyURL)
			if err := s.pr.RecordProbe(ctx, p.ProxyURL, ok); err != nil {
				slog.Info(err.Error())
			}

			mu.Lock()
			results[p.ProxyURL] = ok
			mu.Unlock()
		}(proxy)
	}

	wg.Wait()

	working := 0
	for _, ok := range results {
		if ok {
			working++
		}
	}
	slog.Info("proxy health check finished", "working", working, "total", len(proxies))
	return results, nil
}

func (s *proxyService) probeProxy(ctx context.Context, proxyURL string) bool {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return false
	}

	client := &http.Client{
		Timeout:   proxyProbeTimeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ProxyTestURL, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// SyncFromFile upserts the declarative proxy list into the pool. Assignment
// and error counters of known proxies are preserved.
func (s *proxyService) SyncFromFile(ctx context.Context) (int, int, error) {
	f, err := os.Open(s.cfg.ProxyFile)
	if err != nil {
		slog.Warn("proxy file not found", "path", s.cfg.ProxyFile)
		return 0, 0, nil
	}
	defer f.Close()

	var added, updated int
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		proxy, err := ParseProxyLine(line)
		if err != nil {
			slog.Warn("skipping malformed proxy line", "line", lineNum, "err", err)
			continue
		}
		if s.cfg.MaxAccountsPerProxy > 0 {
			proxy.MaxAccounts = s.cfg.MaxAccountsPerProxy
		}

		created, err := s.pr.Upsert(ctx, proxy)
		if err != nil {
			return added, updated, err
		}
		if created {
			added++
		} else {
			updated++
		}
	}
	if err := scanner.Err(); err != nil {
		return added, updated, err
	}

	slog.Info("proxy pool synced", "added", added, "updated", updated)
	return added, updated, nil
}

// ParseProxyLine parses `protocol://[user:pass@]host:port|Country|City`.
// Location segments are optional.
func ParseProxyLine(line string) (*models.Proxy, error) {
	parts := strings.Split(line, "|")
	proxyURL := strings.TrimSpace(parts[0])

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "socks4", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("proxy url missing host")
	}

	proxy := &models.Proxy{
		ProxyURL:    proxyURL,
		Country:     "Unknown",
		City:        "Unknown",
		MaxErrors:   defaultMaxErrors,
		MaxAccounts: defaultMaxAccounts,
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		proxy.Country = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		proxy.City = strings.TrimSpace(parts[2])
	}
	return proxy, nil
}

func (s *proxyService) Statistics(ctx context.Context) (*transfer.ProxyStats, error) {
	proxies, err := s.pr.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &transfer.ProxyStats{Countries: make(map[string]int)}
	for _, p := range proxies {
		stats.Total++
		if p.IsActive {
			stats.Active++
		}
		if p.AccountsAssigned > 0 {
			stats.Assigned++
		}
		stats.Countries[p.Country]++
	}
	stats.Available = stats.Active - stats.Assigned
	if stats.Active > 0 {
		stats.Utilization = float64(stats.Assigned) / float64(stats.Active) * 100
	}
	return stats, nil
}
