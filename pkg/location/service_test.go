package location_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"geospatial/pkg/location"
)

const belfastCityHall = `[{
	"place_id": 1,
	"osm_type": "way",
	"osm_id": 24961974,
	"lat": "54.5964626",
	"lon": "-5.9301519",
	"type": "townhall",
	"name": "Belfast City Hall",
	"display_name": "Belfast City Hall, Donegall Square, Belfast",
	"address": {"city": "Belfast", "country": "United Kingdom"}
}]`

func newNominatim(t *testing.T, body string, status int) *location.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q, want json", r.URL.Query().Get("format"))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return location.NewClient(srv.URL + "/")
}

func TestClient_Lookup(t *testing.T) {
	client := newNominatim(t, belfastCityHall, http.StatusOK)

	got, err := client.Lookup(context.Background(), "Belfast City Hall")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got.City != "Belfast" {
		t.Errorf("City = %s, want Belfast", got.City)
	}
	if got.Country != "United Kingdom" {
		t.Errorf("Country = %s, want United Kingdom", got.Country)
	}
	if got.Coordinates.Lat != 54.5964626 || got.Coordinates.Lon != -5.9301519 {
		t.Errorf("Coordinates = %+v", got.Coordinates)
	}
}

func TestClient_Geocode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantErr bool
		notFound  bool
	}{
		{name: "match", body: belfastCityHall, status: http.StatusOK},
		{name: "no results", body: `[]`, status: http.StatusOK, wantErr: true, notFound: true},
		{name: "server error", body: `oops`, status: http.StatusInternalServerError, wantErr: true},
		{name: "bad json", body: `{`, status: http.StatusOK, wantErr: true},
		{name: "bad latitude", body: `[{"lat":"north","lon":"0"}]`, status: http.StatusOK, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newNominatim(t, tt.body, tt.status)
			got, err := client.Geocode(context.Background(), "somewhere")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Geocode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.notFound && !errors.Is(err, location.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if !tt.wantErr && got.Lat == 0 {
				t.Errorf("Geocode() = %+v, want a non-zero latitude", got)
			}
		})
	}
}

func TestGeocode_RealAPI(t *testing.T) {
	if os.Getenv("GEO_TEST_NOMINATIM") == "" {
		t.Skip("GEO_TEST_NOMINATIM not set")
	}
	got, err := location.NewClient("").Lookup(context.Background(), "Louvre Museum France")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if got.City != "Paris" {
		t.Errorf("City = %s, want Paris", got.City)
	}
}
