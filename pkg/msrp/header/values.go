package header

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"firestige.xyz/msrp/pkg/msrp/msrperr"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

// ByteRange is the triple described in SPEC_FULL.md §3. End and Total are
// nil when the wire form is "*" (unknown).
type ByteRange struct {
	Start int
	End   *int
	Total *int
}

// Status is the triple "000 NNN[ comment]" described in SPEC_FULL.md §3.
// Namespace is always "000"; only that value is accepted on decode.
type Status struct {
	Code    int
	Comment string
}

// ContentDisposition is the "disposition; k=\"v\"; k2=\"v2\"" value.
type ContentDisposition struct {
	Disposition string
	Parameters  map[string]string
}

// Digest wraps a ParameterList prefixed by the literal "Digest " token on
// the wire (WWW-Authenticate, Authorization).
type Digest struct {
	Parameters map[string]string
}

var byteRangePattern = regexp.MustCompile(`^(\d+)-(\*|\d+)/(\*|\d+)$`)
var statusPattern = regexp.MustCompile(`^(\d{3}) (\d{3})(?: (.*))?$`)
var paramListPattern = regexp.MustCompile(`(\w+)=("[^"]*"|[^",]+)`)
var contentDispositionPattern = regexp.MustCompile(`(\w+)=("[^"]*"|[^";]+)`)

// DecodeOpaqueString returns text unchanged; the opaque-string kind carries
// no grammar of its own.
func DecodeOpaqueString(text string) (string, error) { return text, nil }

// EncodeOpaqueString returns v unchanged.
func EncodeOpaqueString(v string) string { return v }

// DecodeUTF8String validates text is well-formed UTF-8 and returns it.
func DecodeUTF8String(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", &msrperr.HeaderParseError{Value: text, Cause: fmt.Errorf("not valid UTF-8")}
	}
	return text, nil
}

// EncodeUTF8String returns v unchanged.
func EncodeUTF8String(v string) string { return v }

// DecodeURIList splits text on single spaces and parses each element as an
// MSRP URI, per SPEC_FULL.md §4.A. The sequence must be non-empty.
func DecodeURIList(text string) ([]*uri.URI, error) {
	parts := strings.Split(text, " ")
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "") {
		return nil, &msrperr.HeaderParseError{Value: text, Cause: fmt.Errorf("empty URI list")}
	}
	uris := make([]*uri.URI, 0, len(parts))
	for _, p := range parts {
		u, err := uri.Parse(p)
		if err != nil {
			return nil, &msrperr.HeaderParseError{Value: text, Cause: err}
		}
		uris = append(uris, u)
	}
	return uris, nil
}

// EncodeURIList joins URIs with a single space.
func EncodeURIList(uris []*uri.URI) string {
	parts := make([]string, len(uris))
	for i, u := range uris {
		parts[i] = u.String()
	}
	return strings.Join(parts, " ")
}

// DecodeInteger parses a base-10 integer.
func DecodeInteger(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &msrperr.HeaderParseError{Value: text, Cause: err}
	}
	return n, nil
}

// EncodeInteger renders v in base 10.
func EncodeInteger(v int) string { return strconv.Itoa(v) }

// DecodeEnum validates text against the allowed value set for name.
func DecodeEnum(name, text string) (string, error) {
	for _, allowed := range EnumValues(name) {
		if text == allowed {
			return text, nil
		}
	}
	return "", &msrperr.HeaderParseError{Header: name, Value: text, Cause: fmt.Errorf("not in allowed set %v", EnumValues(name))}
}

// EncodeEnum returns v unchanged; callers are expected to have validated it
// via DecodeEnum or by constructing it from the allowed set directly.
func EncodeEnum(v string) string { return v }

// DecodeByteRange parses "start-end/total" per the grammar
// `(\d+)-(\*|\d+)/(\*|\d+)` in SPEC_FULL.md §4.A.
func DecodeByteRange(text string) (ByteRange, error) {
	m := byteRangePattern.FindStringSubmatch(text)
	if m == nil {
		return ByteRange{}, &msrperr.HeaderParseError{Header: NameByteRange, Value: text, Cause: fmt.Errorf("does not match byte-range grammar")}
	}
	start, err := strconv.Atoi(m[1])
	if err != nil || start < 1 {
		return ByteRange{}, &msrperr.HeaderParseError{Header: NameByteRange, Value: text, Cause: fmt.Errorf("invalid start")}
	}
	br := ByteRange{Start: start}
	if m[2] != "*" {
		end, err := strconv.Atoi(m[2])
		if err != nil {
			return ByteRange{}, &msrperr.HeaderParseError{Header: NameByteRange, Value: text, Cause: err}
		}
		br.End = &end
	}
	if m[3] != "*" {
		total, err := strconv.Atoi(m[3])
		if err != nil {
			return ByteRange{}, &msrperr.HeaderParseError{Header: NameByteRange, Value: text, Cause: err}
		}
		br.Total = &total
	}
	return br, nil
}

// EncodeByteRange renders the triple, using "*" for unknown end/total.
func EncodeByteRange(br ByteRange) string {
	end := "*"
	if br.End != nil {
		end = strconv.Itoa(*br.End)
	}
	total := "*"
	if br.Total != nil {
		total = strconv.Itoa(*br.Total)
	}
	return fmt.Sprintf("%d-%s/%s", br.Start, end, total)
}

// DecodeStatus parses "000 NNN[ comment]". Any namespace other than "000",
// or a code that is not exactly three digits, is rejected.
func DecodeStatus(text string) (Status, error) {
	m := statusPattern.FindStringSubmatch(text)
	if m == nil {
		return Status{}, &msrperr.HeaderParseError{Header: NameStatus, Value: text, Cause: fmt.Errorf("does not match status grammar")}
	}
	if m[1] != "000" {
		return Status{}, &msrperr.HeaderParseError{Header: NameStatus, Value: text, Cause: fmt.Errorf("unsupported namespace %q", m[1])}
	}
	code, err := strconv.Atoi(m[2])
	if err != nil {
		return Status{}, &msrperr.HeaderParseError{Header: NameStatus, Value: text, Cause: err}
	}
	return Status{Code: code, Comment: m[3]}, nil
}

// EncodeStatus renders "000 NNN[ comment]".
func EncodeStatus(s Status) string {
	if s.Comment != "" {
		return fmt.Sprintf("000 %03d %s", s.Code, s.Comment)
	}
	return fmt.Sprintf("000 %03d", s.Code)
}

// DecodeParameterList parses `(\w+)=("[^"]*"|[^",]+)` pairs joined by ", ".
func DecodeParameterList(text string) (map[string]string, error) {
	return decodeParams(text, paramListPattern, NameAuthenticationInfo)
}

// EncodeParameterList renders k="v" pairs joined by ", ", sorted by key for
// determinism.
func EncodeParameterList(params map[string]string) string {
	return encodeParams(params, ", ")
}

// DecodeDigest requires a literal leading "Digest " and then delegates to
// the parameter-list grammar.
func DecodeDigest(text string) (Digest, error) {
	const prefix = "Digest "
	if !strings.HasPrefix(text, prefix) {
		return Digest{}, &msrperr.HeaderParseError{Value: text, Cause: fmt.Errorf("missing %q prefix", prefix)}
	}
	params, err := decodeParams(text[len(prefix):], paramListPattern, "")
	if err != nil {
		return Digest{}, err
	}
	return Digest{Parameters: params}, nil
}

// EncodeDigest renders "Digest " followed by the parameter-list encoding.
func EncodeDigest(d Digest) string {
	return "Digest " + encodeParams(d.Parameters, ", ")
}

// DecodeContentDisposition parses "disposition; k=\"v\"; k2=\"v2\"".
func DecodeContentDisposition(text string) (ContentDisposition, error) {
	parts := strings.SplitN(text, ";", 2)
	disposition := strings.TrimSpace(parts[0])
	if disposition == "" {
		return ContentDisposition{}, &msrperr.HeaderParseError{Header: NameContentDisposition, Value: text, Cause: fmt.Errorf("missing disposition token")}
	}
	cd := ContentDisposition{Disposition: disposition}
	if len(parts) == 2 {
		params, err := decodeParams(parts[1], contentDispositionPattern, NameContentDisposition)
		if err != nil {
			return ContentDisposition{}, err
		}
		cd.Parameters = params
	}
	return cd, nil
}

// EncodeContentDisposition renders "disposition; k=\"v\"; k2=\"v2\"".
func EncodeContentDisposition(cd ContentDisposition) string {
	if len(cd.Parameters) == 0 {
		return cd.Disposition
	}
	return cd.Disposition + "; " + encodeParams(cd.Parameters, "; ")
}

func decodeParams(text string, pattern *regexp.Regexp, headerName string) (map[string]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]string{}, nil
	}
	matches := pattern.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil, &msrperr.HeaderParseError{Header: headerName, Value: text, Cause: fmt.Errorf("does not match parameter grammar")}
	}
	params := make(map[string]string, len(matches))
	for _, m := range matches {
		params[m[1]] = strings.Trim(m[2], `"`)
	}
	return params, nil
}

func encodeParams(params map[string]string, sep string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, params[k])
	}
	return strings.Join(parts, sep)
}
