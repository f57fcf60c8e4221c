package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/workbook/internal/storage"
)

type sourceFunc func(ctx context.Context) (map[string]string, error)

func (f sourceFunc) Snapshot(ctx context.Context) (map[string]string, error) { return f(ctx) }

func staticSource(values map[string]string) Source {
	return sourceFunc(func(context.Context) (map[string]string, error) { return values, nil })
}

type memorySink struct {
	mu    sync.Mutex
	puts  map[string][]byte
	putFn func(name string) error
}

func (m *memorySink) Describe() string { return "memory" }

func (m *memorySink) Put(_ context.Context, name string, data []byte) error {
	if m.putFn != nil {
		if err := m.putFn(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.puts == nil {
		m.puts = make(map[string][]byte)
	}
	m.puts[name] = data
	return nil
}

var t0 = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

func TestTakeAndParse(t *testing.T) {
	src := staticSource(map[string]string{
		"selfEndorsements": `[{"id":1,"text":"I went for a walk"}]`,
		"ticTocs":          `[]`,
	})

	snap, err := Take(context.Background(), src, t0)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	data, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Format != FormatVersion {
		t.Errorf("Format = %d, want %d", got.Format, FormatVersion)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
	}

	compact := func(s string) string {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(s)); err != nil {
			t.Fatalf("Compact: %v", err)
		}
		return buf.String()
	}
	values := got.Values()
	for k, v := range values {
		values[k] = compact(v)
	}
	want := map[string]string{
		"selfEndorsements": `[{"id":1,"text":"I went for a walk"}]`,
		"ticTocs":          `[]`,
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestTake_InvalidSlot(t *testing.T) {
	src := staticSource(map[string]string{"ticTocs": `[{`})
	if _, err := Take(context.Background(), src, t0); err == nil {
		t.Fatal("expected error for invalid slot JSON")
	}
}

func TestTake_SourceError(t *testing.T) {
	src := sourceFunc(func(context.Context) (map[string]string, error) {
		return nil, fmt.Errorf("boom")
	})
	if _, err := Take(context.Background(), src, t0); err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantKeys []string
	}{
		{name: "bare map", input: `{"ticTocs":[],"testCants":[{"id":1}]}`, wantKeys: []string{"testCants", "ticTocs"}},
		{name: "empty slots", input: `{"format":1,"slots":null}`, wantKeys: nil},
		{name: "future format", input: `{"format":99,"slots":{}}`, wantErr: true},
		{name: "array", input: `[]`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
		{name: "garbage", input: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			var keys []string
			for k := range snap.Slots {
				keys = append(keys, k)
			}
			if len(keys) != len(tt.wantKeys) {
				t.Fatalf("got keys %v, want %v", keys, tt.wantKeys)
			}
			for _, k := range tt.wantKeys {
				if _, ok := snap.Slots[k]; !ok {
					t.Errorf("missing key %q", k)
				}
			}
		})
	}
}

func TestParse_StringValues(t *testing.T) {
	input := `{"butrebuttal.entries":"[{\"id\":1,\"but\":\"b\",\"rebuttal\":\"r\"}]","tictoc.entries":"[]","notes":"plain text"}`
	snap, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{
		"butrebuttal.entries": `[{"id":1,"but":"b","rebuttal":"r"}]`,
		"tictoc.entries":      `[]`,
		"notes":               `"plain text"`,
	}
	if diff := cmp.Diff(want, snap.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	wrapped, err := Parse([]byte(`{"format":1,"slots":{"tictoc.entries":"[]"}}`))
	if err != nil {
		t.Fatalf("Parse wrapped: %v", err)
	}
	if got := string(wrapped.Slots["tictoc.entries"]); got != "[]" {
		t.Errorf("wrapped slot = %s, want []", got)
	}
}

func TestFileName(t *testing.T) {
	if got, want := FileName(t0), "workbook-20240309T143005Z.json"; got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}
}

func TestFileSink_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	sink := FileSink{Dir: dir}

	if err := sink.Put(context.Background(), "a.json", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"x":1}` {
		t.Errorf("content = %q", data)
	}
	info, err := os.Stat(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestFileSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (FileSink{Dir: t.TempDir()}).Put(ctx, "a.json", nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// fakeS3 accepts PutObject requests and remembers their bodies.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	status  int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.status != 0 {
		return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	}
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[req.URL.Path] = string(body)
	f.types[req.URL.Path] = req.Header.Get("Content-Type")
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{"ETag": {`"etag"`}}}, nil
}

func newFakeS3Sink(t *testing.T, rt *fakeS3) *S3Sink {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
	return &S3Sink{client: client, bucket: "journal", prefix: "workbook/"}
}

func TestS3Sink_Put(t *testing.T) {
	rt := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	sink := newFakeS3Sink(t, rt)

	if err := sink.Put(context.Background(), "snap.json", []byte(`{"format":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, ok := rt.objects["/journal/workbook/snap.json"]
	if !ok {
		t.Fatalf("object not uploaded, have %v", rt.objects)
	}
	if !strings.Contains(body, `{"format":1}`) {
		t.Errorf("body = %q", body)
	}
	if ct := rt.types["/journal/workbook/snap.json"]; ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := sink.Describe(); got != "s3://journal/workbook" {
		t.Errorf("Describe = %q", got)
	}
}

func TestS3Sink_PutError(t *testing.T) {
	rt := &fakeS3{objects: map[string]string{}, types: map[string]string{}, status: http.StatusForbidden}
	sink := newFakeS3Sink(t, rt)
	if err := sink.Put(context.Background(), "snap.json", []byte(`{}`)); err == nil {
		t.Fatal("expected error for rejected upload")
	}
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	if _, err := NewS3Sink(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// resetRunAfter sets run_after to now so the job is immediately claimable after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store, jobID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE id = ?`, now, jobID)
	if err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store, id string) (string, int) {
	t.Helper()
	var status string
	var attempts int
	if err := store.DB().QueryRow(`SELECT status, attempts FROM jobs WHERE id = ?`, id).Scan(&status, &attempts); err != nil {
		t.Fatalf("query job %s: %v", id, err)
	}
	return status, attempts
}

func TestWorker_ProcessesJob(t *testing.T) {
	store := openTestStore(t)
	id, err := Enqueue(store, "manual")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sink := &memorySink{}
	w := NewWorker(store, staticSource(map[string]string{"ticTocs": `[]`}), sink, 0)
	w.now = func() time.Time { return t0 }

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	data, ok := sink.puts[FileName(t0)]
	if !ok {
		t.Fatalf("snapshot not written, have %d objects", len(sink.puts))
	}
	snap, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse written snapshot: %v", err)
	}
	if _, ok := snap.Slots["ticTocs"]; !ok {
		t.Error("snapshot missing ticTocs slot")
	}

	if status, _ := jobStatus(t, store, id); status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, staticSource(nil), &memorySink{}, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("RunOnce returned true with an empty queue")
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	id, err := Enqueue(store, "scheduled")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var calls atomic.Int32
	sink := &memorySink{putFn: func(string) error {
		if n := calls.Add(1); n <= 2 {
			return fmt.Errorf("transient error %d", n)
		}
		return nil
	}}
	w := NewWorker(store, staticSource(map[string]string{}), sink, 0)
	ctx := context.Background()

	// 1st attempt fails
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 1 error: %v", err)
	}
	if status, attempts := jobStatus(t, store, id); status != "pending" || attempts != 1 {
		t.Errorf("after 1st fail: status=%q attempts=%d, want pending/1", status, attempts)
	}

	resetRunAfter(t, store, id)

	// 2nd attempt fails
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 2 error: %v", err)
	}
	if _, attempts := jobStatus(t, store, id); attempts != 2 {
		t.Errorf("after 2nd fail: attempts=%d, want 2", attempts)
	}

	resetRunAfter(t, store, id)

	// 3rd attempt succeeds
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 3 error: %v", err)
	}
	if status, _ := jobStatus(t, store, id); status != "completed" {
		t.Errorf("after 3rd attempt: status=%q, want completed", status)
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	id, err := Enqueue(store, "scheduled")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sink := &memorySink{putFn: func(string) error { return fmt.Errorf("permanent error") }}
	w := NewWorker(store, staticSource(map[string]string{}), sink, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 3 {
			resetRunAfter(t, store, id)
		}
	}

	if status, _ := jobStatus(t, store, id); status != "failed" {
		t.Errorf("final status = %q, want %q", status, "failed")
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, staticSource(nil), &memorySink{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
