// Package connectivity runs best-effort reachability probes against
// url-typed effective values: sqlite URLs get a file-existence check,
// host:port URLs a short TCP dial, anything else is skipped. Output carries
// only variable names and endpoint locations, never values of secret
// variables beyond their parsed scheme.
package connectivity

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/systmms/envctl/internal/contract"
)

// DialTimeout bounds each TCP probe.
const DialTimeout = 1500 * time.Millisecond

// Check is the probe outcome for one url-typed variable.
type Check struct {
	Var     string                 `json:"var"`
	Scheme  string                 `json:"scheme"`
	Secret  bool                   `json:"secret"`
	Status  string                 `json:"status"` // PASS|FAIL|SKIP|UNKNOWN
	Details map[string]interface{} `json:"details"`
}

// Report collects all probes for one environment.
type Report struct {
	Env          string  `json:"env"`
	TimestampUTC string  `json:"timestamp_utc"`
	Checks       []Check `json:"checks"`
}

// Passed reports whether every check ended PASS or SKIP.
func (r Report) Passed() bool {
	for _, c := range r.Checks {
		if c.Status != "PASS" && c.Status != "SKIP" {
			return false
		}
	}
	return true
}

// Build probes every in-scope url-typed variable present in effective.
func Build(specs map[string]contract.VarSpec, effective map[string]interface{}, env, timestamp string) Report {
	report := Report{Env: env, TimestampUTC: timestamp, Checks: []Check{}}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := specs[name]
		if !spec.Applicable(env) || spec.Type != contract.TypeURL {
			continue
		}
		raw, present := effective[name]
		if !present {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}

		report.Checks = append(report.Checks, probe(name, spec, value))
	}

	return report
}

func probe(name string, spec contract.VarSpec, value string) Check {
	check := Check{
		Var:     name,
		Secret:  spec.Secret,
		Status:  "UNKNOWN",
		Details: map[string]interface{}{},
	}

	parsed, err := url.Parse(value)
	if err != nil {
		check.Status = "FAIL"
		check.Details = map[string]interface{}{"error": "unparseable URL"}
		return check
	}
	check.Scheme = parsed.Scheme

	if strings.HasPrefix(parsed.Scheme, "sqlite") {
		return sqliteCheck(check, parsed)
	}

	host := parsed.Hostname()
	portStr := parsed.Port()
	if host == "" || portStr == "" {
		check.Status = "SKIP"
		check.Details = map[string]interface{}{"note": "No host/port to TCP-check; parsed only."}
		return check
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		check.Status = "SKIP"
		check.Details = map[string]interface{}{"note": "No host/port to TCP-check; parsed only."}
		return check
	}

	ok, msg := tcpCheck(host, port, DialTimeout)
	if ok {
		check.Status = "PASS"
	} else {
		check.Status = "FAIL"
	}
	check.Details = map[string]interface{}{"host": host, "port": port, "result": msg}
	return check
}

// sqliteCheck normalizes sqlite:////abs/path and sqlite:///relative forms and
// checks file existence instead of dialing.
func sqliteCheck(check Check, parsed *url.URL) Check {
	path := parsed.Path
	doubleSlash := strings.HasPrefix(path, "//")
	if doubleSlash {
		path = path[1:]
	} else {
		path = strings.TrimPrefix(path, "/")
	}

	if path == "" {
		check.Status = "FAIL"
		check.Details = map[string]interface{}{"error": "sqlite URL missing path"}
		return check
	}

	if !doubleSlash && !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	_, err := os.Stat(path)
	exists := err == nil
	if exists {
		check.Status = "PASS"
	} else {
		check.Status = "FAIL"
	}
	check.Details = map[string]interface{}{"path": path, "exists": exists}
	return check
}

func tcpCheck(host string, port int, timeout time.Duration) (bool, string) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false, err.Error()
	}
	_ = conn.Close()
	return true, fmt.Sprintf("reachable (%dms)", time.Since(start).Milliseconds())
}
