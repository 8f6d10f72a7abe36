// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/types"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func resumeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 resume"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newArchivist(store ledger.Ledger, file string, key []byte, ttl time.Duration) *Archivist {
	return NewArchivist(store, ArchivistOptions{
		AppName:    "genteelfolio-test",
		PublicURL:  "https://folio.example",
		FileKey:    "resume.pdf",
		FilePath:   file,
		SigningKey: key,
		TTL:        ttl,
	})
}

func tokenOf(t *testing.T, link types.ResumeLink) string {
	t.Helper()
	u, err := url.Parse(link.PresignedURL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("token")
}

func TestIssueAndRedeemOnce(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	file := resumeFile(t)
	a := newArchivist(store, file, testSigningKey, time.Minute)

	link, err := a.IssueLink(ctx, "203.0.113.7", "curl/8")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link.PresignedURL, "https://folio.example/files/resume?token=") {
		t.Errorf("unexpected link %q", link.PresignedURL)
	}
	if link.ValidForSeconds != 60 {
		t.Errorf("expected 60 seconds, got %d", link.ValidForSeconds)
	}

	entries := store.Downloads()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Status != types.DownloadSuccess || entries[0].RequesterIP != "203.0.113.7" || entries[0].UserAgent != "curl/8" {
		t.Errorf("unexpected log entry %+v", entries[0])
	}

	path, err := a.Redeem(ctx, tokenOf(t, link))
	if err != nil {
		t.Fatal(err)
	}
	if path != file {
		t.Errorf("got path %q", path)
	}
	if _, err := a.Redeem(ctx, tokenOf(t, link)); !errors.Is(err, ErrLinkRejected) {
		t.Fatalf("second redeem must be rejected, got %v", err)
	}
	if store.Downloads()[0].Status != types.DownloadRedeemed {
		t.Errorf("log entry should be redeemed")
	}
}

func TestRedeemRejectsForgeries(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	file := resumeFile(t)
	a := newArchivist(store, file, testSigningKey, time.Minute)
	other := newArchivist(store, file, []byte("another key entirely, 32 bytes!"), time.Minute)

	if _, err := a.Redeem(ctx, "garbage"); !errors.Is(err, ErrLinkRejected) {
		t.Errorf("garbage: %v", err)
	}
	if _, err := a.Redeem(ctx, ""); !errors.Is(err, ErrLinkRejected) {
		t.Errorf("empty: %v", err)
	}

	link, err := other.IssueLink(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Redeem(ctx, tokenOf(t, link)); !errors.Is(err, ErrLinkRejected) {
		t.Errorf("foreign signature: %v", err)
	}
}

func TestIssueLinkWithoutFile(t *testing.T) {
	store := ledger.NewMemory()
	a := newArchivist(store, filepath.Join(t.TempDir(), "missing.pdf"), testSigningKey, time.Minute)

	if _, err := a.IssueLink(context.Background(), "", ""); !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("expected ErrLinkFailed, got %v", err)
	}
	entries := store.Downloads()
	if len(entries) != 1 || entries[0].Status != types.DownloadFailedPrefix+FailureNoSuchKey {
		t.Errorf("unexpected log %+v", entries)
	}
}

func TestLinkExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a link to expire")
	}
	ctx := context.Background()
	a := newArchivist(ledger.NewMemory(), resumeFile(t), testSigningKey, time.Second)

	link, err := a.IssueLink(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2100 * time.Millisecond)
	if _, err := a.Redeem(ctx, tokenOf(t, link)); !errors.Is(err, ErrLinkRejected) {
		t.Fatalf("expired link must be rejected, got %v", err)
	}
}

func TestRedeemKeepsTheLinkWhileTheFileIsMissing(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	file := resumeFile(t)
	a := newArchivist(store, file, testSigningKey, time.Minute)

	link, err := a.IssueLink(ctx, "203.0.113.7", "curl/8")
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}

	_, err = a.Redeem(ctx, tokenOf(t, link))
	if !errors.Is(err, ErrLinkFailed) || errors.Is(err, ErrLinkRejected) {
		t.Fatalf("expected ErrLinkFailed, got %v", err)
	}
	if entries := store.Downloads(); entries[0].Status != types.DownloadSuccess {
		t.Errorf("link spent without a file: %s", entries[0].Status)
	}

	if err := os.WriteFile(file, content, 0o600); err != nil {
		t.Fatal(err)
	}
	if path, err := a.Redeem(ctx, tokenOf(t, link)); err != nil || path != file {
		t.Errorf("link should still work once the file is back: %q %v", path, err)
	}
}
