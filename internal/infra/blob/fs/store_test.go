package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"herdbook/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := s.Put(ctx, "reports/seasonal/one.csv", strings.NewReader("month,rate\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"species": "goat"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("month,rate\n")) || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") || !strings.HasSuffix(info.URL, "reports/seasonal/one.csv") {
		t.Fatalf("unexpected url %q", info.URL)
	}

	head, err := s.Head(ctx, "reports/seasonal/one.csv")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.ContentType != "text/csv" || head.Metadata["species"] != "goat" || head.ETag != info.ETag {
		t.Fatalf("unexpected head %+v", head)
	}

	_, rc, err := s.Get(ctx, "reports/seasonal/one.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "month,rate\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := s.Put(ctx, "reports/seasonal/one.csv", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	if _, err := s.Put(ctx, "reports/recommendations/two.json", strings.NewReader("[]"), core.PutOptions{}); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	list, err := s.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Key != "reports/recommendations/two.json" || list[1].Key != "reports/seasonal/one.csv" {
		t.Fatalf("unexpected list %+v", list)
	}

	url, err := s.PresignURL(ctx, "reports/seasonal/one.csv", core.SignedURLOptions{})
	if err != nil || url != info.URL {
		t.Fatalf("PresignURL = %q, %v", url, err)
	}
	if _, err := s.PresignURL(ctx, "reports/seasonal/one.csv", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}

	existed, err := s.Delete(ctx, "reports/seasonal/one.csv")
	if err != nil || !existed {
		t.Fatalf("Delete existed=%v err=%v", existed, err)
	}
	if existed, _ := s.Delete(ctx, "reports/seasonal/one.csv"); existed {
		t.Fatalf("expected second delete to report missing")
	}
	if _, err := s.Head(ctx, "reports/seasonal/one.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "reports/seasonal/one.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestKeyValidation(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b", "report.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("Put(%q) expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestConcurrentPutClaimsKeyOnce(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(context.Background(), "reports/race.json", strings.NewReader("{}"), core.PutOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, core.ErrExists):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful put, got %d", wins)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if filepath.Base(s.Root()) != DefaultRoot {
		t.Fatalf("unexpected root %s", s.Root())
	}
	if _, err := os.Stat(s.Root()); err != nil {
		t.Fatalf("root not created: %v", err)
	}
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}
