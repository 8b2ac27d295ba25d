package mesh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meshstat/meshstat/pkg/model"
)

// HAProxySource reads backend state from the HAProxy stats endpoint exposed
// by the sidecar proxy on every host.
type HAProxySource struct {
	client    *http.Client
	port      int
	urlFormat string // "{host}" and "{port}" placeholders
}

// NewHAProxySource creates an HAProxy backend source.
func NewHAProxySource(port int, urlFormat string, timeout time.Duration) *HAProxySource {
	return &HAProxySource{
		client:    newAdminHTTPClient(timeout),
		port:      port,
		urlFormat: urlFormat,
	}
}

// Flavor returns the mesh flavor name.
func (s *HAProxySource) Flavor() Flavor { return FlavorHAProxy }

// Backends fetches the stats CSV from the admin endpoint at host and returns
// the rows of the registration's backend pool.
func (s *HAProxySource) Backends(ctx context.Context, registration, host string) ([]model.MeshBackend, error) {
	url := expandURL(s.urlFormat, host, s.port, "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building haproxy stats request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching haproxy stats from %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("haproxy stats from %s: unexpected status %d", host, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading haproxy stats from %s: %w", host, err)
	}
	return parseHAProxyCSV(string(raw), registration)
}

// Sort orders backends descending by status label so UP backends list before
// MAINT. Reproduced exactly for golden-output compatibility.
func (s *HAProxySource) Sort(backends []model.MeshBackend) {
	sort.SliceStable(backends, func(i, j int) bool {
		return backends[i].Status > backends[j].Status
	})
}

// parseHAProxyCSV parses the stats CSV ("# pxname,svname,..." header) and
// keeps the server rows of the registration's pool. Columns are resolved by
// header name: stats layouts differ across proxy versions.
func parseHAProxyCSV(body, registration string) ([]model.MeshBackend, error) {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "#") {
		return nil, fmt.Errorf("malformed haproxy stats csv: missing header")
	}

	header := strings.Split(strings.TrimPrefix(lines[0], "# "), ",")
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var backends []model.MeshBackend
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		row := strings.Split(line, ",")

		if field(row, "pxname") != registration {
			continue
		}
		svname := field(row, "svname")
		if svname == "FRONTEND" || svname == "BACKEND" {
			continue
		}

		address, port, hostname := splitServerName(svname)
		be := model.MeshBackend{
			Address:       address,
			Port:          port,
			Hostname:      hostname,
			Status:        model.BackendHealth(field(row, "status")),
			CheckStatus:   field(row, "check_status"),
			CheckCode:     field(row, "check_code"),
			CheckDuration: field(row, "check_duration"),
		}
		if lastchg, err := strconv.ParseInt(field(row, "lastchg"), 10, 64); err == nil {
			be.LastChange = &lastchg
		}
		backends = append(backends, be)
	}
	return backends, nil
}

// splitServerName parses the "address:port_hostname" server naming scheme.
func splitServerName(svname string) (address string, port int32, hostname string) {
	addrPort := svname
	if i := strings.IndexByte(svname, '_'); i >= 0 {
		addrPort = svname[:i]
		hostname = svname[i+1:]
	}
	if i := strings.LastIndexByte(addrPort, ':'); i >= 0 {
		address = addrPort[:i]
		if p, err := strconv.ParseInt(addrPort[i+1:], 10, 32); err == nil {
			port = int32(p)
		}
	} else {
		address = addrPort
	}
	return address, port, hostname
}

// expandURL fills the {host}, {port}, and {endpoint} placeholders of an admin
// URL format.
func expandURL(format, host string, port int, endpoint string) string {
	r := strings.NewReplacer(
		"{host}", host,
		"{port}", strconv.Itoa(port),
		"{endpoint}", endpoint,
	)
	return r.Replace(format)
}
