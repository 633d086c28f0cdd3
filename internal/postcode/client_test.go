package postcode

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL, nil, time.Minute, logger)
}

func TestLookupReturnsNormalizedAddress(t *testing.T) {
	var seenPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": 200,
			"result": {
				"postcode": "SW1A 1AA",
				"post_town": "London",
				"admin_ward": "St James's",
				"admin_county": "",
				"region": "London"
			}
		}`))
	}))
	defer srv.Close()

	addresses := testClient(srv.URL).Lookup(context.Background(), "sw1a 1aa")

	assert.Equal(t, "/postcodes/SW1A1AA", seenPath)
	require.Len(t, addresses, 1)
	assert.Equal(t, "St James's", addresses[0].Line1)
	assert.Equal(t, "London", addresses[0].Town)
	assert.Equal(t, "London", addresses[0].County)
	assert.Equal(t, "SW1A 1AA", addresses[0].Postcode)
}

func TestLookupUnknownPostcodeDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":404,"error":"Postcode not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	addresses := testClient(srv.URL).Lookup(context.Background(), "ZZ99 9ZZ")
	assert.NotNil(t, addresses)
	assert.Empty(t, addresses)
}

func TestLookupProviderOutageDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	addresses := testClient(srv.URL).Lookup(context.Background(), "SW1A 1AA")
	assert.Empty(t, addresses)
}

func TestLookupMalformedResponseDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	addresses := testClient(srv.URL).Lookup(context.Background(), "SW1A 1AA")
	assert.Empty(t, addresses)
}

func TestLookupBlankPostcode(t *testing.T) {
	addresses := testClient("http://127.0.0.1:0").Lookup(context.Background(), "   ")
	assert.Empty(t, addresses)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"sw1a 1aa":   "SW1A1AA",
		" SW1A1AA ":  "SW1A1AA",
		"yo1 7hh":    "YO17HH",
		"Y O 1 7HH ": "YO17HH",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}
