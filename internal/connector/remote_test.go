package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquery/internal/domain"
)

const indicatorPayload = `[
  {"page": 1, "pages": 1, "per_page": 2000, "total": 2},
  [
    {"indicator": {"id": "NY.GDP.MKTP.KD.ZG", "value": "GDP growth"},
     "country": {"value": "Spain"}, "countryiso3code": "ESP",
     "date": "2023", "value": 2.5},
    {"indicator": {"id": "NY.GDP.MKTP.KD.ZG", "value": "GDP growth"},
     "country": {"value": "Spain"}, "countryiso3code": "ESP",
     "date": "2022", "value": null}
  ]
]`

func TestRemoteStats_Execute(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(indicatorPayload))
	}))
	defer srv.Close()

	conn := NewRemoteStats(srv.URL)
	frame, prov, err := conn.Execute(context.Background(), map[string]string{
		"indicator":  "NY.GDP.MKTP.KD.ZG",
		"countries":  "ESP",
		"start_year": "2022",
		"end_year":   "2023",
	})
	require.NoError(t, err)

	t.Run("request shape", func(t *testing.T) {
		assert.Contains(t, gotPath, "/country/ESP/indicator/NY.GDP.MKTP.KD.ZG")
		assert.Contains(t, gotQuery, "date=2022%3A2023")
		assert.Contains(t, gotQuery, "format=json")
	})

	t.Run("rows normalized", func(t *testing.T) {
		require.Len(t, frame.Rows, 2)
		assert.Equal(t, "Spain", frame.Rows[0]["country"])
		assert.Equal(t, 2023.0, frame.Rows[0]["year"])
		assert.Equal(t, 2.5, frame.Rows[0]["value"])
		assert.Nil(t, frame.Rows[1]["value"], "missing observation stays null")
	})

	t.Run("provenance", func(t *testing.T) {
		assert.Equal(t, "NY.GDP.MKTP.KD.ZG", prov.DatasetID)
		assert.Contains(t, prov.Locator, "/country/ESP/indicator/")
	})
}

func TestRemoteStats_DefaultCountrySet(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{}, []]`))
	}))
	defer srv.Close()

	conn := NewRemoteStats(srv.URL)
	_, _, err := conn.Execute(context.Background(), map[string]string{"indicator": "X"})
	require.NoError(t, err)
	assert.Contains(t, gotPath, "USA;DEU;FRA")
}

func TestRemoteStats_Errors(t *testing.T) {
	t.Run("missing indicator", func(t *testing.T) {
		conn := NewRemoteStats("http://localhost:1")
		_, _, err := conn.Execute(context.Background(), nil)
		var cerr *domain.ConnectorError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("server error surfaces as typed error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		conn := NewRemoteStats(srv.URL)
		_, _, err := conn.Execute(context.Background(), map[string]string{"indicator": "X"})
		var cerr *domain.ConnectorError
		require.ErrorAs(t, err, &cerr)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"unexpected": "object"}`))
		}))
		defer srv.Close()

		conn := NewRemoteStats(srv.URL)
		_, _, err := conn.Execute(context.Background(), map[string]string{"indicator": "X"})
		var cerr *domain.ConnectorError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("timeout is bounded and typed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`[{}, []]`))
		}))
		defer srv.Close()

		conn := NewRemoteStats(srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
		_, _, err := conn.Execute(context.Background(), map[string]string{"indicator": "X"})
		var cerr *domain.ConnectorError
		require.ErrorAs(t, err, &cerr)
	})
}
