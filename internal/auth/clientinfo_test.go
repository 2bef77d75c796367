package auth

import (
	"errors"
	"testing"
	"time"
)

func TestParseClientInfoMalformed(t *testing.T) {
	cases := []string{
		"",
		"pif!paf!pouf!",
		"pif/paf",
		"pif/paf/pouf/.",
		"p/p/",
		"p//p",
		"pif/paf/pouf",                     // timestamp lacks the Z suffix
		"2016-03-21T15:37:59Z/remoteci/id", // T separator instead of a space
		"2016-13-45 15:37:59Z/remoteci/id", // impossible date
	}
	for _, value := range cases {
		t.Run(value, func(t *testing.T) {
			_, err := ParseClientInfo(value)
			if !errors.Is(err, ErrMalformedClientInfo) {
				t.Fatalf("ParseClientInfo(%q): got %v, want ErrMalformedClientInfo", value, err)
			}
		})
	}
}

func TestParseClientInfoErrorMessage(t *testing.T) {
	// Agents in the field match on this message; it must not drift.
	_, err := ParseClientInfo("pif/paf")
	want := `DCI-Client-Info should match the following format: "YYYY-MM-DD HH:MI:SSZ/<client_type>/<id>"`
	if err == nil || err.Error() != want {
		t.Fatalf("got error %v, want %q", err, want)
	}
}

func TestParseClientInfoValid(t *testing.T) {
	info, err := ParseClientInfo("2016-03-21 15:37:59Z/foo/12890-abcdef")
	if err != nil {
		t.Fatalf("ParseClientInfo: %v", err)
	}

	wantTS := time.Date(2016, 3, 21, 15, 37, 59, 0, time.UTC)
	if !info.Timestamp.Equal(wantTS) {
		t.Errorf("got timestamp %v, want %v", info.Timestamp, wantTS)
	}
	if info.Type != "foo" {
		t.Errorf("got type %q, want %q", info.Type, "foo")
	}
	if info.ID != "12890-abcdef" {
		t.Errorf("got id %q, want %q", info.ID, "12890-abcdef")
	}
}
