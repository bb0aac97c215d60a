// Package signaling is a thin adapter that pulls MSRP connection
// parameters out of an already-received SDP body. It implements no SIP
// transaction, dialog, or transport logic — spec.md keeps the signalling
// channel an external collaborator, and this package only ever reads a
// body string off a github.com/ghettovoice/gosip/sip.Message the embedder
// already parsed.
package signaling

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ghettovoice/gosip/sip"

	"firestige.xyz/msrp/pkg/msrp/uri"
)

// Setup is the offerer/answerer's TCP role for the MSRP connection, from
// SDP's a=setup attribute (RFC 4145).
type Setup string

const (
	SetupActive  Setup = "active"
	SetupPassive Setup = "passive"
	SetupHolding Setup = "holdconn"
)

// Endpoint is everything an MSRP session needs to pull out of a peer's
// SDP offer/answer: the path of URIs to send to, and which side dials.
type Endpoint struct {
	Path  []*uri.URI
	Setup Setup
}

var (
	pathLineRE  = regexp.MustCompile(`(?m)^a=path:(.+)$`)
	setupLineRE = regexp.MustCompile(`(?m)^a=setup:(\S+)\r?$`)
)

// FromMessage extracts an Endpoint from msg's SDP body.
func FromMessage(msg sip.Message) (Endpoint, error) {
	return FromBody(msg.Body())
}

// FromBody extracts an Endpoint from a raw SDP body string.
func FromBody(body string) (Endpoint, error) {
	pathMatch := pathLineRE.FindStringSubmatch(body)
	if pathMatch == nil {
		return Endpoint{}, fmt.Errorf("signaling: no a=path attribute in SDP body")
	}

	var path []*uri.URI
	for _, field := range strings.Fields(pathMatch[1]) {
		u, err := uri.Parse(field)
		if err != nil {
			return Endpoint{}, fmt.Errorf("signaling: parsing path URI %q: %w", field, err)
		}
		path = append(path, u)
	}

	setup := SetupActive
	if setupMatch := setupLineRE.FindStringSubmatch(body); setupMatch != nil {
		switch Setup(setupMatch[1]) {
		case SetupActive, SetupPassive, SetupHolding:
			setup = Setup(setupMatch[1])
		default:
			return Endpoint{}, fmt.Errorf("signaling: unrecognized a=setup value %q", setupMatch[1])
		}
	}

	return Endpoint{Path: path, Setup: setup}, nil
}

// RemoteURI returns the first (nearest) URI in the path, the address this
// endpoint should address outgoing chunks to.
func (e Endpoint) RemoteURI() *uri.URI {
	if len(e.Path) == 0 {
		return nil
	}
	return e.Path[0]
}

// Dials reports whether this side is the one expected to open the TCP
// connection, per RFC 4145's active/passive roles.
func (e Endpoint) Dials() bool {
	return e.Setup == SetupActive
}
