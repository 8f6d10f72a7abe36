// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/config"
	"github.com/schildwaechter/genteelfolio/internal/services"

	"github.com/gofiber/fiber/v2"
)

// fakeAPI answers every request with the given status and body
func fakeAPI(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func siteApp(apiURL string) *fiber.App {
	courier := services.NewNimbleCourier("genteelfolio-test", 2*time.Second)
	flags := config.StaticFlags(5)
	site := NewSite("Genteel Folio", "Ada",
		flags,
		services.NewResumeFetcher(courier, apiURL+"/api/resume/"),
		services.NewBookingSubmitter(courier, apiURL+"/api/book", flags),
	)
	app := NewApp("Genteel Folio", []string{testPeer})
	site.RegisterRoutes(app)
	return app
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func bookingValues() url.Values {
	return url.Values{
		"form_id": {"form-1"},
		"name":    {"Ada Lovelace"},
		"email":   {"ada@example.com"},
		"date":    {"2026-11-02"},
		"time":    {"14:30"},
	}
}

func postBooking(t *testing.T, app *fiber.App, values url.Values, accept string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestAboutPage(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusOK, `{}`))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	for _, want := range []string{"Download Resume (Secure Link)", "About/Resume", "Book a Meeting", "Hello, I&#39;m Ada"} {
		if !strings.Contains(body, want) {
			t.Errorf("page misses %q", want)
		}
	}
}

func TestResumeRedirectsToPresignedURL(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusOK, `{"presigned_url": "https://example.com/x", "expires_in": 60}`))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/resume", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com/x" {
		t.Errorf("location %q", loc)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("cache control %q", cc)
	}
}

func TestResumeNotices(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   int
		notice string
	}{
		{"throttled", http.StatusTooManyRequests, http.StatusTooManyRequests, "Rate Limit Exceeded"},
		{"broken", http.StatusInternalServerError, http.StatusBadGateway, services.ResumeFailedNotice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := siteApp(fakeAPI(t, tc.status, `{"error":"nope"}`))
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/resume", nil))
			if err != nil {
				t.Fatal(err)
			}
			body := readBody(t, resp)
			if resp.StatusCode != tc.want {
				t.Errorf("status %d, want %d", resp.StatusCode, tc.want)
			}
			if !strings.Contains(body, tc.notice) {
				t.Errorf("notice %q missing", tc.notice)
			}
		})
	}
}

func TestBookingForm(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusCreated, `{}`))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/book", nil))
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)
	for _, want := range []string{`name="form_id"`, `name="email"`, "Processing...", "max 5 requests/min"} {
		if !strings.Contains(body, want) {
			t.Errorf("form misses %q", want)
		}
	}
}

func TestBookingSubmitJSON(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusConflict, `{"error": "Slot taken"}`))
	resp := postBooking(t, app, bookingValues(), fiber.MIMEApplicationJSON)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var answer BookingAnswer
	if err := json.Unmarshal([]byte(body), &answer); err != nil {
		t.Fatalf("%v in %s", err, body)
	}
	if answer.Message != "Slot taken" || answer.Kind != "backend_error" || answer.State != "idle" || answer.FormID != "form-1" {
		t.Errorf("unexpected answer %+v", answer)
	}
}

func TestBookingSubmitText(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusCreated, `{"message":"ok"}`))
	resp := postBooking(t, app, bookingValues(), fiber.MIMETextPlain)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, services.BookingConfirmedNotice) {
		t.Errorf("body %q", body)
	}
}

func TestBookingSubmitHTMLRateLimited(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusTooManyRequests, ``))
	resp := postBooking(t, app, bookingValues(), "")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Rate Limit Exceeded") || !strings.Contains(body, "5 requests/min") {
		t.Errorf("notice missing in page")
	}
	// the visitor's input survives a failed attempt
	if !strings.Contains(body, `value="ada@example.com"`) {
		t.Errorf("form values lost")
	}
}

func TestBookingSubmitInvalid(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusCreated, ``))
	values := bookingValues()
	values.Set("email", "not-an-email")
	resp := postBooking(t, app, values, fiber.MIMEApplicationJSON)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "email must be a valid email address") {
		t.Errorf("body %s", body)
	}
}

func TestBookingCancelWithoutSubmission(t *testing.T) {
	app := siteApp(fakeAPI(t, http.StatusCreated, ``))
	req := httptest.NewRequest(http.MethodPost, "/book/cancel", strings.NewReader("form_id=nothing-here"))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d", resp.StatusCode)
	}
}
