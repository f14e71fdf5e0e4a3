package startup

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Check that all fields are populated
	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	// Verify that runtime values are correct
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {}).Methods("GET")
	router.HandleFunc("/api/scan", func(http.ResponseWriter, *http.Request) {}).Methods("POST")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("Expected 2 routes, got %d", len(routes))
	}

	found := make(map[string]string)
	for _, r := range routes {
		found[r.Path] = r.Method
	}
	if found["/healthz"] != "GET" {
		t.Errorf("Expected GET /healthz, got %q", found["/healthz"])
	}
	if found["/api/scan"] != "POST" {
		t.Errorf("Expected POST /api/scan, got %q", found["/api/scan"])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "healthz"},
		{"/api/scan", "api/scan"},
		{"/api/assets/{checksum}/{kind}", "api/assets"},
		{"/metrics", "metrics"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRouteInfo(t *testing.T) {
	route := RouteInfo{
		Method: "GET",
		Path:   "/api/test",
		Name:   "TestRoute",
	}

	if route.Method != "GET" {
		t.Errorf("Expected Method=GET, got %s", route.Method)
	}
	if route.Path != "/api/test" {
		t.Errorf("Expected Path=/api/test, got %s", route.Path)
	}
	if route.Name != "TestRoute" {
		t.Errorf("Expected Name=TestRoute, got %s", route.Name)
	}
}
