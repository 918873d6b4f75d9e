package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFakeQWeather(t *testing.T, geoCode, nowCode string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geo", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("geo request missing API key")
		}
		if r.URL.Query().Get("location") == "" {
			t.Errorf("geo request missing location")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": geoCode,
			"location": []map[string]string{
				{"id": "101010100"},
			},
		})
	})
	mux.HandleFunc("/now", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("location") != "101010100" {
			t.Errorf("now request location = %q, want resolved ID", r.URL.Query().Get("location"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": nowCode,
			"now": map[string]string{
				"temp":      "25",
				"text":      "晴",
				"humidity":  "65",
				"windDir":   "东北风",
				"windScale": "3",
			},
		})
	})
	return httptest.NewServer(mux)
}

func TestClient_Now(t *testing.T) {
	server := newFakeQWeather(t, "200", "200")
	defer server.Close()

	client := NewClient("test-key", server.URL+"/geo", server.URL+"/now", 5*time.Second)

	report, err := client.Now(context.Background(), "北京")
	if err != nil {
		t.Fatalf("Now failed: %v", err)
	}

	if report.City != "北京" {
		t.Errorf("City = %q", report.City)
	}
	if report.Temperature != "25°C" {
		t.Errorf("Temperature = %q", report.Temperature)
	}
	if report.Weather != "晴" {
		t.Errorf("Weather = %q", report.Weather)
	}
	if report.Humidity != "65%" {
		t.Errorf("Humidity = %q", report.Humidity)
	}
	if report.Wind != "东北风 3级" {
		t.Errorf("Wind = %q", report.Wind)
	}
	if report.Message != "为您查询到北京的天气信息" {
		t.Errorf("Message = %q", report.Message)
	}
}

func TestClient_Now_GeoFailure(t *testing.T) {
	server := newFakeQWeather(t, "404", "200")
	defer server.Close()

	client := NewClient("test-key", server.URL+"/geo", server.URL+"/now", 5*time.Second)
	if _, err := client.Now(context.Background(), "不存在的城市"); err == nil {
		t.Error("expected error when location lookup fails")
	}
}

func TestClient_Now_WeatherFailure(t *testing.T) {
	server := newFakeQWeather(t, "200", "500")
	defer server.Close()

	client := NewClient("test-key", server.URL+"/geo", server.URL+"/now", 5*time.Second)
	if _, err := client.Now(context.Background(), "北京"); err == nil {
		t.Error("expected error when now-weather query fails")
	}
}

func TestClient_Now_ServerDown(t *testing.T) {
	server := newFakeQWeather(t, "200", "200")
	server.Close()

	client := NewClient("test-key", server.URL+"/geo", server.URL+"/now", time.Second)
	if _, err := client.Now(context.Background(), "北京"); err == nil {
		t.Error("expected transport error")
	}
}
