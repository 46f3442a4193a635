package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *storage.Storage, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func createSource(t *testing.T, s *storage.Storage, userID int64, url, label string) *domain.Source {
	t.Helper()
	src := &domain.Source{UserID: userID, URL: url, Label: label}
	if err := s.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	return src
}

func befriend(t *testing.T, s *storage.Storage, a, b int64, status domain.FriendshipStatus) {
	t.Helper()
	ctx := context.Background()
	f, err := s.CreateFriendship(ctx, a, b)
	if err != nil {
		t.Fatalf("CreateFriendship: %v", err)
	}
	if status != domain.FriendshipPending {
		if err := s.SetFriendshipStatus(ctx, f.ID, status); err != nil {
			t.Fatalf("SetFriendshipStatus: %v", err)
		}
	}
}

// fakeFetcher serves canned payloads keyed by URL
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
	delete(f.errs, url)
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, &domain.FetchError{Kind: domain.FetchHTTP, URL: url, StatusCode: 404}
	}
	return []byte(body), nil
}

// vevent is a minimal VEVENT for building test feeds
type vevent struct {
	uid, summary, start, end string
	extra                    []string
}

func calendar(events ...vevent) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n")
	for _, e := range events {
		b.WriteString("BEGIN:VEVENT\r\n")
		if e.uid != "" {
			fmt.Fprintf(&b, "UID:%s\r\n", e.uid)
		}
		b.WriteString("DTSTAMP:20240101T000000Z\r\n")
		if e.summary != "" {
			fmt.Fprintf(&b, "SUMMARY:%s\r\n", e.summary)
		}
		if e.start != "" {
			fmt.Fprintf(&b, "DTSTART%s\r\n", e.start)
		}
		if e.end != "" {
			fmt.Fprintf(&b, "DTEND%s\r\n", e.end)
		}
		for _, line := range e.extra {
			b.WriteString(line + "\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}
