package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

var keyRe = regexp.MustCompile(`^[A-Za-z0-9:_=\-&,.]+$`)

func TestResponse_Determinism(t *testing.T) {
	k1 := Response("map", "nameSearch=cafe&tag=a,b&pageView=map&json=true")
	k2 := Response("map", "nameSearch=cafe&tag=a,b&pageView=map&json=true")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !keyRe.MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
}

func TestResponse_OrderAndSpacingInsensitive(t *testing.T) {
	k1 := Response("map", "?nameSearch=cafe&json=true")
	k2 := Response(" map ", " json=true&&nameSearch=cafe ")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestResponse_DifferentInputsDiffer(t *testing.T) {
	if Response("map", "offset=20&json=true") == Response("map", "offset=40&json=true") {
		t.Fatal("different payloads must produce different keys")
	}
	if Response("map", "json=true") == Response("list", "json=true") {
		t.Fatal("different page views must produce different keys")
	}
}

func TestResponse_UnicodeSafetyAndHashSuffix(t *testing.T) {
	k := Response("map", "nameSearch=G%C3%B6teborg%20%E9%9B%AA&json=true")
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if m := regexp.MustCompile(`:h=([0-9a-f]{16})$`).FindStringSubmatch(k); len(m) != 2 {
		t.Fatalf("missing or invalid :h=<hex64> suffix in key: %s", k)
	}
	if !strings.HasPrefix(k, "resp:map:q=") {
		t.Fatalf("unexpected prefix: %s", k)
	}
}

func TestResponse_LongPayloadTruncated(t *testing.T) {
	k := Response("map", "nameSearch="+strings.Repeat("x", 500))
	if len(k) > len("resp:map:q=")+maxTextLen+len(":h=")+16 {
		t.Fatalf("key too long (%d): %s", len(k), k)
	}
}

func TestHistory(t *testing.T) {
	if got := History("0b7f c1"); got != "hist:0b7f_c1" {
		t.Fatalf("History=%q", got)
	}
}
