package signaling

import "testing"

const sampleSDP = "v=0\r\n" +
	"o=- 123 456 IN IP4 198.51.100.1\r\n" +
	"s=-\r\n" +
	"c=IN IP4 198.51.100.1\r\n" +
	"t=0 0\r\n" +
	"m=message 2855 TCP/MSRP *\r\n" +
	"a=accept-types:message/cpim\r\n" +
	"a=path:msrp://198.51.100.1:2855/abc123;tcp\r\n" +
	"a=setup:passive\r\n"

func TestFromBodyParsesPathAndSetup(t *testing.T) {
	ep, err := FromBody(sampleSDP)
	if err != nil {
		t.Fatalf("FromBody: %v", err)
	}
	if len(ep.Path) != 1 {
		t.Fatalf("Path = %v, want 1 entry", ep.Path)
	}
	if ep.Setup != SetupPassive {
		t.Errorf("Setup = %s, want passive", ep.Setup)
	}
	if ep.Dials() {
		t.Error("a passive endpoint should not dial")
	}
	remote := ep.RemoteURI()
	if remote.Host != "198.51.100.1" || remote.SessionID != "abc123" {
		t.Errorf("RemoteURI = %+v, want host 198.51.100.1 session abc123", remote)
	}
}

func TestFromBodyDefaultsToActiveSetup(t *testing.T) {
	body := "m=message 2855 TCP/MSRP *\r\n" +
		"a=path:msrp://198.51.100.1:2855/abc123;tcp\r\n"
	ep, err := FromBody(body)
	if err != nil {
		t.Fatalf("FromBody: %v", err)
	}
	if ep.Setup != SetupActive || !ep.Dials() {
		t.Errorf("expected default active/dialing endpoint, got %+v", ep)
	}
}

func TestFromBodyMultiHopPath(t *testing.T) {
	body := "a=path:msrp://relay.example.com:2855/r1;tcp msrp://ua.example.com:2855/u1;tcp\r\n"
	ep, err := FromBody(body)
	if err != nil {
		t.Fatalf("FromBody: %v", err)
	}
	if len(ep.Path) != 2 {
		t.Fatalf("Path = %v, want 2 entries", ep.Path)
	}
	if ep.RemoteURI().Host != "relay.example.com" || ep.RemoteURI().SessionID != "r1" {
		t.Errorf("RemoteURI should be the nearest hop, got %+v", ep.RemoteURI())
	}
}

func TestFromBodyMissingPathIsError(t *testing.T) {
	if _, err := FromBody("m=message 2855 TCP/MSRP *\r\n"); err == nil {
		t.Fatal("expected error for SDP body without a=path")
	}
}

func TestFromBodyRejectsUnknownSetup(t *testing.T) {
	body := "a=path:msrp://198.51.100.1:2855/abc123;tcp\r\n" +
		"a=setup:bogus\r\n"
	if _, err := FromBody(body); err == nil {
		t.Fatal("expected error for unrecognized a=setup value")
	}
}
