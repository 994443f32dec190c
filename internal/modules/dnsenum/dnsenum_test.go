package dnsenum

import (
	"net"
	"reflect"
	"testing"

	mdns "github.com/miekg/dns"
)

func TestEnsurePort(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"8.8.8.8":      "8.8.8.8:53",
		"8.8.8.8:5353": "8.8.8.8:5353",
		"dns.local":    "dns.local:53",
	}
	for in, want := range cases {
		if got := ensurePort(in); got != want {
			t.Errorf("ensurePort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeResolvers(t *testing.T) {
	t.Parallel()

	if got := normalizeResolvers(nil); !reflect.DeepEqual(got, defaultResolvers) {
		t.Errorf("empty input must fall back to defaults, got %v", got)
	}

	got := normalizeResolvers([]string{"9.9.9.9", "1.1.1.1:53"})
	want := []string{"9.9.9.9:53", "1.1.1.1:53"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeResolvers = %v, want %v", got, want)
	}
}

func TestRecordValue(t *testing.T) {
	t.Parallel()

	hdr := func(name string, rrtype uint16) mdns.RR_Header {
		return mdns.RR_Header{Name: name, Rrtype: rrtype, Class: mdns.ClassINET}
	}

	cases := []struct {
		rr   mdns.RR
		want string
	}{
		{&mdns.A{Hdr: hdr("example.com.", mdns.TypeA), A: net.ParseIP("93.184.216.34")}, "93.184.216.34"},
		{&mdns.CNAME{Hdr: hdr("www.example.com.", mdns.TypeCNAME), Target: "Edge.Example.COM."}, "edge.example.com"},
		{&mdns.MX{Hdr: hdr("example.com.", mdns.TypeMX), Preference: 10, Mx: "mail.example.com."}, "10 mail.example.com"},
		{&mdns.NS{Hdr: hdr("example.com.", mdns.TypeNS), Ns: "ns1.example.com."}, "ns1.example.com"},
		{&mdns.TXT{Hdr: hdr("example.com.", mdns.TypeTXT), Txt: []string{"v=spf1", "-all"}}, "v=spf1 -all"},
	}
	for _, tc := range cases {
		if got := recordValue(tc.rr); got != tc.want {
			t.Errorf("recordValue(%T) = %q, want %q", tc.rr, got, tc.want)
		}
	}
}

func TestRecordHost(t *testing.T) {
	t.Parallel()

	cname := &mdns.CNAME{Target: "edge.example.com."}
	if got := recordHost(cname); got != "edge.example.com." {
		t.Errorf("recordHost(CNAME) = %q", got)
	}

	a := &mdns.A{A: net.ParseIP("10.0.0.1")}
	if got := recordHost(a); got != "" {
		t.Errorf("recordHost(A) = %q, want empty", got)
	}
}
