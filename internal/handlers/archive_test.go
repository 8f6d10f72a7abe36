// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/herald"
	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/services"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/gofiber/fiber/v2"
)

const resumeContent = "%PDF-1.4 the resume"

// app.Test connects from this address
const testPeer = "0.0.0.0"

func archiveApp(t *testing.T, publicURL string, rate int, trustedProxies []string) (*fiber.App, *ledger.Memory) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "resume.pdf")
	if err := os.WriteFile(file, []byte(resumeContent), 0o600); err != nil {
		t.Fatal(err)
	}
	store := ledger.NewMemory()
	archivist := services.NewArchivist(store, services.ArchivistOptions{
		AppName:    "genteelfolio-test",
		PublicURL:  publicURL,
		FileKey:    "resume.pdf",
		FilePath:   file,
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		TTL:        time.Minute,
	})
	clerk := services.NewDiligentClerk("genteelfolio-test", store, herald.QuietHerald{})
	app := NewApp("genteelfolio-test", trustedProxies)
	NewArchive("genteelfolio-test", "resume.pdf", rate, archivist, clerk).RegisterRoutes(app)
	return app, store
}

func getLink(t *testing.T, app *fiber.App, ip string) (*http.Response, types.ResumeLink) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/resume/", nil)
	req.Header.Set("X-Forwarded-For", ip)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var link types.ResumeLink
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal([]byte(readBody(t, resp)), &link); err != nil {
			t.Fatal(err)
		}
	}
	return resp, link
}

func TestResumeLinkServesTheFileOnce(t *testing.T) {
	app, store := archiveApp(t, "https://folio.example", 5, []string{testPeer})

	resp, link := getLink(t, app, "203.0.113.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if link.ValidForSeconds != 60 {
		t.Errorf("expires_in %d", link.ValidForSeconds)
	}
	u, err := url.Parse(link.PresignedURL)
	if err != nil || u.Host != "folio.example" || u.Path != "/files/resume" {
		t.Fatalf("unexpected link %q", link.PresignedURL)
	}

	first, err := app.Test(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first download status %d", first.StatusCode)
	}
	if body := readBody(t, first); body != resumeContent {
		t.Errorf("served %q", body)
	}

	second, err := app.Test(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if second.StatusCode != http.StatusForbidden {
		t.Errorf("second download status %d", second.StatusCode)
	}
	if !strings.Contains(readBody(t, second), LinkRejectedMessage) {
		t.Errorf("missing rejection message")
	}

	entries := store.Downloads()
	if len(entries) != 1 || entries[0].Status != types.DownloadRedeemed || entries[0].RequesterIP != "203.0.113.1" {
		t.Errorf("unexpected log %+v", entries)
	}
}

func TestForgedTokenIsForbidden(t *testing.T) {
	app, _ := archiveApp(t, "https://folio.example", 5, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/files/resume?token=forged", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestApiRateLimit(t *testing.T) {
	app, _ := archiveApp(t, "https://folio.example", 5, []string{testPeer})
	for i := 0; i < 5; i++ {
		if resp, _ := getLink(t, app, "198.51.100.9"); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, resp.StatusCode)
		}
	}
	resp, _ := getLink(t, app, "198.51.100.9")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("sixth request: status %d", resp.StatusCode)
	}
	var apiErr types.APIError
	if err := json.Unmarshal([]byte(readBody(t, resp)), &apiErr); err != nil || apiErr.Error != RateLimitedMessage {
		t.Errorf("unexpected body %+v %v", apiErr, err)
	}

	// someone else is not affected
	if resp, _ := getLink(t, app, "198.51.100.10"); resp.StatusCode != http.StatusOK {
		t.Errorf("other client: status %d", resp.StatusCode)
	}
}

func TestForwardedForFromStrangersIsIgnored(t *testing.T) {
	app, store := archiveApp(t, "https://folio.example", 5, nil)
	for i := 1; i <= 5; i++ {
		if resp, _ := getLink(t, app, fmt.Sprintf("10.0.0.%d", i)); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status %d", i, resp.StatusCode)
		}
	}
	if resp, _ := getLink(t, app, "10.0.0.6"); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("rotating the header must not reset the limit, status %d", resp.StatusCode)
	}
	for _, entry := range store.Downloads() {
		if entry.RequesterIP != testPeer {
			t.Errorf("download log took the word of the header: %q", entry.RequesterIP)
		}
	}
}

func postAPIBooking(t *testing.T, app *fiber.App, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/book", strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp, readBody(t, resp)
}

func TestApiBooking(t *testing.T) {
	app, store := archiveApp(t, "https://folio.example", 5, nil)
	payload := `{"name":"Ada","email":"ada@example.com","date":"2026-11-02","time":"14:30"}`

	resp, body := postAPIBooking(t, app, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var accepted BookingAccepted
	if err := json.Unmarshal([]byte(body), &accepted); err != nil || accepted.ID == "" {
		t.Errorf("unexpected body %s", body)
	}

	resp, body = postAPIBooking(t, app, payload)
	if resp.StatusCode != http.StatusConflict || !strings.Contains(body, `"Slot taken"`) {
		t.Errorf("second booking: %d %s", resp.StatusCode, body)
	}

	resp, body = postAPIBooking(t, app, `{"name":"","email":"ada@example.com","date":"2026-11-02","time":"15:00"}`)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "name is required") {
		t.Errorf("invalid booking: %d %s", resp.StatusCode, body)
	}

	if store.Bookings() != 1 {
		t.Errorf("expected one stored booking, got %d", store.Bookings())
	}
}

// liveArchive listens on a real socket and trusts the site on loopback
func liveArchive(t *testing.T) (string, *ledger.Memory) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := "http://" + ln.Addr().String()
	archive, store := archiveApp(t, base, 5, []string{"127.0.0.1"})
	go func() {
		_ = archive.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = archive.Shutdown()
	})
	return base, store
}

// the site and the archive in one process, talking over a real socket
func TestSiteAgainstArchive(t *testing.T) {
	base, _ := liveArchive(t)
	site := siteApp(base)

	resp, err := site.Test(httptest.NewRequest(http.MethodGet, "/resume", nil), 5000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, base+"/files/resume?token=") {
		t.Fatalf("location %q", loc)
	}
	download, err := http.Get(loc)
	if err != nil {
		t.Fatal(err)
	}
	if download.StatusCode != http.StatusOK || readBody(t, download) != resumeContent {
		t.Errorf("download failed with %d", download.StatusCode)
	}

	first := postBooking(t, site, bookingValues(), fiber.MIMEApplicationJSON)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("booking status %d: %s", first.StatusCode, readBody(t, first))
	}
	second := postBooking(t, site, bookingValues(), fiber.MIMEApplicationJSON)
	var answer BookingAnswer
	if err := json.Unmarshal([]byte(readBody(t, second)), &answer); err != nil {
		t.Fatal(err)
	}
	if second.StatusCode != http.StatusBadGateway || answer.Message != SlotTakenMessage {
		t.Errorf("second booking: %d %+v", second.StatusCode, answer)
	}
}

// every visitor of the site has a bucket of their own at the archive
func TestSiteForwardsEachVisitor(t *testing.T) {
	base, store := liveArchive(t)
	site := siteApp(base)

	visitors := make(map[string]bool)
	for i := 1; i <= 6; i++ {
		ip := fmt.Sprintf("198.51.100.%d", i)
		visitors[ip] = true
		req := httptest.NewRequest(http.MethodGet, "/resume", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := site.Test(req, 5000)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("visitor %s: status %d", ip, resp.StatusCode)
		}
	}

	entries := store.Downloads()
	if len(entries) != 6 {
		t.Fatalf("expected 6 issued links, got %d", len(entries))
	}
	for _, entry := range entries {
		if !visitors[entry.RequesterIP] {
			t.Errorf("download log names %q instead of a visitor", entry.RequesterIP)
		}
	}
}
