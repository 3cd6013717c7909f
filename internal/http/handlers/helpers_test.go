package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func testContext(t *testing.T, url string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		name string
		url  string
		def  int
		want int
	}{
		{name: "missing_uses_default", url: "/x", def: 50, want: 50},
		{name: "explicit", url: "/x?limit=25", def: 50, want: 25},
		{name: "garbage_uses_default", url: "/x?limit=abc", def: 50, want: 50},
		{name: "zero_uses_default", url: "/x?limit=0", def: 50, want: 50},
		{name: "negative_uses_default", url: "/x?limit=-3", def: 50, want: 50},
		{name: "capped_at_500", url: "/x?limit=9999", def: 50, want: 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testContext(t, tc.url)
			if got := parseLimit(c, tc.def); got != tc.want {
				t.Fatalf("parseLimit=%d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseUUIDParam(t *testing.T) {
	c := testContext(t, "/x")
	want := uuid.MustParse("7d9f4c21-0000-4000-8000-000000000001")
	c.Params = gin.Params{{Key: "user_id", Value: want.String()}}

	got, ok := parseUUIDParam(c, "user_id")
	if !ok || got != want {
		t.Fatalf("parseUUIDParam=%s ok=%v, want %s", got, ok, want)
	}

	c.Params = gin.Params{{Key: "user_id", Value: "not-a-uuid"}}
	if _, ok := parseUUIDParam(c, "user_id"); ok {
		t.Fatal("malformed uuid param should not parse")
	}
}
