package netcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/atomic"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// DefaultEndpoints are the candidate service endpoints probed when no
// override endpoint is configured.
var DefaultEndpoints = []string{
	"https://iot.us-east-1.amazonaws.com",
	"https://iot.us-west-2.amazonaws.com",
	"https://greengrass.us-east-1.amazonaws.com",
	"https://www.amazontrust.com",
}

const (
	// DefaultTimeout bounds every network call made by the probe. The
	// connect timeout is half of it.
	DefaultTimeout = 10 * time.Second

	defaultDNSProbeName      = "amazonaws.com"
	defaultReferenceEndpoint = "https://www.amazontrust.com"
	resolvConfPath           = "/etc/resolv.conf"
	fallbackResolver         = "127.0.0.53:53"
)

// Probe checks DNS, HTTPS and service endpoint reachability.
//
// The zero value is not usable; construct with New. The HTTP client is
// process-scoped state owned by the probe: it is created once in New and
// released in Close.
type Probe struct {
	// Endpoints is the candidate endpoint list, tried in order.
	Endpoints []string

	// OverrideEndpoint, when non-empty, fully replaces Endpoints.
	OverrideEndpoint string

	// ReferenceEndpoint is the fixed endpoint used for the HTTPS
	// reachability and latency checks.
	ReferenceEndpoint string

	// DNSProbeName is the public name resolved in the DNS check.
	DNSProbeName string

	// Timeout bounds each network call.
	Timeout time.Duration

	// Resolve overrides the DNS check, for controlled environments.
	Resolve func(ctx context.Context, host string) error

	client *http.Client
	closed atomic.Bool
	log    *slog.Logger
}

// New creates a probe with default endpoints and timeouts and an initialized
// HTTP client.
func New(log *slog.Logger) *Probe {
	timeout := DefaultTimeout
	return &Probe{
		Endpoints:         append([]string(nil), DefaultEndpoints...),
		ReferenceEndpoint: defaultReferenceEndpoint,
		DNSProbeName:      defaultDNSProbeName,
		Timeout:           timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout / 2,
				}).DialContext,
				TLSHandshakeTimeout: timeout / 2,
			},
		},
		log: log,
	}
}

// Close releases the probe's network resources. The probe must not be used
// after Close.
func (p *Probe) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.client.CloseIdleConnections()
	}
}

// Check runs the full connectivity probe.
func (p *Probe) Check(ctx context.Context) interfaces.ConnectivityResult {
	result := interfaces.ConnectivityResult{}
	if p.closed.Load() {
		result.Error = ErrProbeClosed.Error()
		return result
	}

	p.log.Info("Starting connectivity check")

	if err := p.resolveName(ctx, p.DNSProbeName); err != nil {
		result.Error = fmt.Sprintf("DNS resolution failed: %s", err)
		p.log.Error("DNS resolution check failed", "err", err, slog.String("name", p.DNSProbeName))
		return result
	}
	result.DNSOk = true

	start := time.Now()
	if err := p.checkEndpoint(ctx, p.ReferenceEndpoint); err != nil {
		result.Error = fmt.Sprintf("HTTPS connectivity check failed: %s", err)
		p.log.Error("HTTPS connectivity check failed", "err", err, slog.String("endpoint", p.ReferenceEndpoint))
		return result
	}
	result.HTTPSOk = true
	result.Latency = time.Since(start)
	p.log.Debug("Measured reference endpoint latency", slog.Duration("latency", result.Latency))

	if p.OverrideEndpoint != "" {
		result.TestedEndpoints = append(result.TestedEndpoints, p.OverrideEndpoint)
		if err := p.checkEndpoint(ctx, p.OverrideEndpoint); err != nil {
			result.Error = fmt.Sprintf("failed to connect to override endpoint %s: %s", p.OverrideEndpoint, err)
			p.log.Error("Failed to connect to override endpoint", "err", err, slog.String("endpoint", p.OverrideEndpoint))
			return result
		}
	} else {
		reached := false
		for _, endpoint := range p.Endpoints {
			result.TestedEndpoints = append(result.TestedEndpoints, endpoint)
			if err := p.checkEndpoint(ctx, endpoint); err != nil {
				p.log.Debug("Endpoint unreachable", slog.String("endpoint", endpoint), "err", err)
				continue
			}
			p.log.Debug("Endpoint reachable", slog.String("endpoint", endpoint))
			reached = true
			break
		}
		if !reached {
			result.Error = "failed to connect to any endpoint"
			p.log.Error("Failed to connect to any endpoint")
			return result
		}
	}

	result.IsConnected = true
	p.log.Info("Connectivity check passed", slog.Duration("latency", result.Latency))
	return result
}

// resolveName resolves a public DNS name against the system resolver.
func (p *Probe) resolveName(ctx context.Context, host string) error {
	if p.Resolve != nil {
		return p.Resolve(ctx, host)
	}

	server := fallbackResolver
	if conf, err := dns.ClientConfigFromFile(resolvConfPath); err == nil && len(conf.Servers) > 0 {
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: p.Timeout / 2}
	in, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return fmt.Errorf("could not query %s: %w", server, err)
	}
	if len(in.Answer) == 0 {
		return fmt.Errorf("no records for %s", host)
	}

	p.log.Debug("Resolved DNS name", slog.String("name", host), slog.Int("answers", len(in.Answer)))
	return nil
}

// checkEndpoint performs a HEAD request to minimize data transfer. Responses
// below 400 count as reachable.
func (p *Probe) checkEndpoint(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("invalid endpoint %s: %w", endpoint, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// ErrProbeClosed is returned by probes used after Close.
var ErrProbeClosed = errors.New("connectivity probe closed")
