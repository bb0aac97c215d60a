// Package uri implements the MSRP URI grammar, parsing, serialization, and
// comparison defined in RFC 4975 §6.1 (SPEC_FULL.md §4.C).
package uri

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"firestige.xyz/msrp/pkg/msrp/msrperr"
)

// DefaultPort is used when a URI omits an explicit port.
const DefaultPort = 2855

// DefaultTransport is the only transport value accepted during parsing.
const DefaultTransport = "tcp"

var uriPattern = regexp.MustCompile(
	`^(?P<scheme>.*?)://(((?P<user>.*?)@)?(?P<host>.*?)(:(?P<port>[0-9]+?))?)` +
		`(/(?P<sessionid>.*?))?;(?P<transport>.*?)(;(?P<parameters>.*))?$`,
)

// URI is the value object described by SPEC_FULL.md §3. Credentials is
// opaque to this package; callers (e.g. a TLS transport) may stash whatever
// they need there.
type URI struct {
	UseTLS      bool
	User        string
	Host        string
	Port        int
	SessionID   string
	Transport   string
	Parameters  map[string]string
	Credentials any
}

// Parse parses an MSRP URI string per the grammar in SPEC_FULL.md §4.C.
func Parse(s string) (*URI, error) {
	m := uriPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, &msrperr.URIParseError{Input: s, Cause: fmt.Errorf("does not match MSRP URI grammar")}
	}
	groups := make(map[string]string, len(m))
	for i, name := range uriPattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		groups[name] = m[i]
	}

	var useTLS bool
	switch strings.ToLower(groups["scheme"]) {
	case "msrp":
		useTLS = false
	case "msrps":
		useTLS = true
	default:
		return nil, &msrperr.URIParseError{Input: s, Cause: fmt.Errorf("unsupported scheme %q", groups["scheme"])}
	}

	transport := groups["transport"]
	if transport == "" {
		transport = DefaultTransport
	}
	if !strings.EqualFold(transport, DefaultTransport) {
		return nil, &msrperr.URIParseError{Input: s, Cause: fmt.Errorf("unsupported transport %q", transport)}
	}

	host := groups["host"]
	if host == "" {
		return nil, &msrperr.URIParseError{Input: s, Cause: fmt.Errorf("missing host")}
	}

	port := DefaultPort
	if p := groups["port"]; p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &msrperr.URIParseError{Input: s, Cause: fmt.Errorf("invalid port %q: %w", p, err)}
		}
		port = n
	}

	sessionID := groups["sessionid"]
	if sessionID == "" {
		var err error
		sessionID, err = randomSessionID()
		if err != nil {
			return nil, &msrperr.URIParseError{Input: s, Cause: err}
		}
	}

	params, err := parseParameters(groups["parameters"])
	if err != nil {
		return nil, &msrperr.URIParseError{Input: s, Cause: err}
	}

	return &URI{
		UseTLS:     useTLS,
		User:       groups["user"],
		Host:       host,
		Port:       port,
		SessionID:  sessionID,
		Transport:  transport,
		Parameters: params,
	}, nil
}

func parseParameters(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	params := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed parameter %q", pair)
		}
		params[k] = v
	}
	return params, nil
}

// randomSessionID produces 80 random bits rendered as lowercase hex, per
// SPEC_FULL.md §3.
func randomSessionID() (string, error) {
	b := make([]byte, 10) // 80 bits
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// Scheme returns "msrps" when UseTLS, else "msrp".
func (u *URI) Scheme() string {
	if u.UseTLS {
		return "msrps"
	}
	return "msrp"
}

// String serializes the URI back to wire form. Parse(u.String()) == u for
// every legally constructed URI (invariant 2 in SPEC_FULL.md §8).
func (u *URI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme())
	b.WriteString("://")
	if u.User != "" {
		b.WriteString(u.User)
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	if u.Port != 0 {
		fmt.Fprintf(&b, ":%d", u.Port)
	}
	if u.SessionID != "" {
		b.WriteByte('/')
		b.WriteString(u.SessionID)
	}
	b.WriteByte(';')
	transport := u.Transport
	if transport == "" {
		transport = DefaultTransport
	}
	b.WriteString(transport)
	if len(u.Parameters) > 0 {
		keys := make([]string, 0, len(u.Parameters))
		for k := range u.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(';')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(u.Parameters[k])
		}
	}
	return b.String()
}

// Equal implements the comparison in SPEC_FULL.md §3: only use_tls,
// lowercase host, port, session-id, and lowercase transport participate.
func (u *URI) Equal(other *URI) bool {
	if u == nil || other == nil {
		return u == other
	}
	transport := u.Transport
	if transport == "" {
		transport = DefaultTransport
	}
	otherTransport := other.Transport
	if otherTransport == "" {
		otherTransport = DefaultTransport
	}
	return u.UseTLS == other.UseTLS &&
		strings.EqualFold(u.Host, other.Host) &&
		u.Port == other.Port &&
		u.SessionID == other.SessionID &&
		strings.EqualFold(transport, otherTransport)
}

// Key returns a hashable key consistent with Equal, suitable for use as a
// map key or a hashring node id.
func (u *URI) Key() string {
	transport := u.Transport
	if transport == "" {
		transport = DefaultTransport
	}
	return fmt.Sprintf("%t|%s|%d|%s|%s", u.UseTLS, strings.ToLower(u.Host), u.Port, u.SessionID, strings.ToLower(transport))
}
