package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
	tu "github.com/desertthunder/nfcbox/internal/testing"
)

func TestDeviceService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("Default BaseURL", func(t *testing.T) {
			srv := NewDeviceService("")
			if srv.BaseURL() != "http://192.168.4.1" {
				t.Errorf("expected soft-AP address, got %s", srv.BaseURL())
			}
		})

		t.Run("Trailing Slash Is Trimmed", func(t *testing.T) {
			srv := NewDeviceService("http://jukebox.local/")
			if srv.BaseURL() != "http://jukebox.local" {
				t.Errorf("expected trimmed URL, got %s", srv.BaseURL())
			}
		})

		t.Run("Nil Client Keeps Default", func(t *testing.T) {
			srv := NewDeviceService("http://example.com", WithHTTPClient(nil))
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})

		t.Run("Rate Limit", func(t *testing.T) {
			if srv := NewDeviceService("", WithRateLimit(2)); srv.limiter == nil {
				t.Error("expected limiter for positive rate")
			}
			if srv := NewDeviceService("", WithRateLimit(0)); srv.limiter != nil {
				t.Error("expected no limiter for zero rate")
			}
		})

		t.Run("From Config", func(t *testing.T) {
			cfg := shared.DefaultConfig().Device
			srv, err := NewDeviceServiceFromConfig(cfg, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.timeout != 10*time.Second {
				t.Errorf("expected 10s timeout, got %v", srv.timeout)
			}
			if srv.uploadTimeout != 10*time.Minute {
				t.Errorf("expected 10m upload timeout, got %v", srv.uploadTimeout)
			}
			if srv.limiter == nil {
				t.Error("expected limiter")
			}
		})

		t.Run("From Config Rejects Bad Values", func(t *testing.T) {
			tests := []struct {
				name   string
				mutate func(*shared.DeviceConfig)
			}{
				{"bad timeout", func(c *shared.DeviceConfig) { c.Timeout = "soon" }},
				{"bad upload timeout", func(c *shared.DeviceConfig) { c.UploadTimeout = "-1s" }},
				{"negative rate", func(c *shared.DeviceConfig) { c.RequestsPerSecond = -1 }},
				{"relative url", func(c *shared.DeviceConfig) { c.BaseURL = "jukebox" }},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					cfg := shared.DefaultConfig().Device
					tt.mutate(&cfg)
					if _, err := NewDeviceServiceFromConfig(cfg, nil); !errors.Is(err, shared.ErrInvalidConfig) {
						t.Errorf("expected ErrInvalidConfig, got %v", err)
					}
				})
			}
		})
	})

	t.Run("Songs", func(t *testing.T) {
		t.Run("Lists Stored Files", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.AddSong("a.mp3", 100, 1700000000)
			dev.AddSong("b.mp3", 200, 0)

			songs, err := NewDeviceService(dev.URL()).Songs(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(songs) != 2 {
				t.Fatalf("expected 2 songs, got %d", len(songs))
			}
			if songs[0].Name != "a.mp3" || songs[0].Size != 100 || songs[0].Timestamp != 1700000000 {
				t.Errorf("unexpected song %+v", songs[0])
			}
		})

		t.Run("Null And Empty Bodies Are Empty Lists", func(t *testing.T) {
			for _, body := range []string{"null", "", "[]"} {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(body))
				}))

				songs, err := NewDeviceService(server.URL).Songs(ctx)
				server.Close()

				if err != nil {
					t.Fatalf("body %q: expected no error, got %v", body, err)
				}
				if songs == nil || len(songs) != 0 {
					t.Errorf("body %q: expected empty non-nil list, got %v", body, songs)
				}
			}
		})

		t.Run("Non-200 Is Transport Failure", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.Override("/songs", tu.Response{Status: http.StatusInternalServerError, Body: "oops"})

			_, err := NewDeviceService(dev.URL()).Songs(ctx)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Malformed JSON", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.Override("/songs", tu.Response{Status: http.StatusOK, Body: "{not json"})

			_, err := NewDeviceService(dev.URL()).Songs(ctx)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Timeout", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			}))
			defer server.Close()

			srv := NewDeviceService(server.URL, WithTimeouts(20*time.Millisecond, 0))
			_, err := srv.Songs(ctx)
			if !errors.Is(err, shared.ErrTimeout) {
				t.Errorf("expected ErrTimeout, got %v", err)
			}
		})
	})

	t.Run("Mappings", func(t *testing.T) {
		dev := tu.NewFakeDevice(t)
		dev.AddMapping("04a1", "a.mp3")

		mappings, err := NewDeviceService(dev.URL()).Mappings(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(mappings) != 1 || mappings[0].TagID != "04a1" || mappings[0].Song != "a.mp3" {
			t.Errorf("unexpected mappings %+v", mappings)
		}
	})

	t.Run("TagID", func(t *testing.T) {
		t.Run("Tag Present", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.SetTag("04a1b2")

			tag, err := NewDeviceService(dev.URL()).TagID(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tag != "04a1b2" {
				t.Errorf("expected 04a1b2, got %s", tag)
			}
		})

		t.Run("No Tag", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			_, err := NewDeviceService(dev.URL()).TagID(ctx)
			if !errors.Is(err, shared.ErrNoTag) {
				t.Errorf("expected ErrNoTag, got %v", err)
			}
		})

		t.Run("Absent Field", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.Override("/tagid", tu.Response{Status: http.StatusOK, Body: "{}"})

			_, err := NewDeviceService(dev.URL()).TagID(ctx)
			if !errors.Is(err, shared.ErrNoTag) {
				t.Errorf("expected ErrNoTag, got %v", err)
			}
		})
	})

	t.Run("AddMapping", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			if err := NewDeviceService(dev.URL()).AddMapping(ctx, "04a1", "a.mp3"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			reqs := dev.Writes()
			if len(reqs) != 1 || reqs[0].Path != "/addmapping" {
				t.Fatalf("expected one addmapping request, got %v", dev.Paths())
			}
			if reqs[0].JSON["tagid"] != "04a1" || reqs[0].JSON["song"] != "a.mp3" {
				t.Errorf("unexpected body %v", reqs[0].JSON)
			}
		})

		t.Run("Non-200 With Message", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.Override("/addmapping", tu.Response{
				Status: http.StatusBadRequest,
				Body:   `{"result":"ERROR","message":"unknown song"}`,
			})

			err := NewDeviceService(dev.URL()).AddMapping(ctx, "04a1", "a.mp3")
			var re *ResultError
			if !errors.As(err, &re) {
				t.Fatalf("expected ResultError, got %v", err)
			}
			if re.Reason() != "unknown song" {
				t.Errorf("expected reason 'unknown song', got %q", re.Reason())
			}
			if !errors.Is(err, shared.ErrDeviceFailure) {
				t.Errorf("expected ErrDeviceFailure, got %v", err)
			}
		})

		t.Run("200 Without Body Is Success", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.Override("/addmapping", tu.Response{Status: http.StatusOK})

			if err := NewDeviceService(dev.URL()).AddMapping(ctx, "04a1", "a.mp3"); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	})

	t.Run("DeleteMapping", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.AddMapping("04a1", "a.mp3")

			if err := NewDeviceService(dev.URL()).DeleteMapping(ctx, "04a1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(dev.Mappings()) != 0 {
				t.Errorf("expected mapping removed, got %v", dev.Mappings())
			}
		})

		t.Run("Non-200 Without Message", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			err := NewDeviceService(dev.URL()).DeleteMapping(ctx, "missing")
			var re *ResultError
			if !errors.As(err, &re) {
				t.Fatalf("expected ResultError, got %v", err)
			}
			if re.Status != http.StatusNotFound || re.Result != "NOTFOUND" {
				t.Errorf("unexpected error %+v", re)
			}
		})
	})

	t.Run("RenameFile", func(t *testing.T) {
		t.Run("Reports Mapping Updates", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.AddSong("a.mp3", 10, 0)
			dev.AddSong("b.mp3", 10, 0)
			dev.AddMapping("04a1", "a.mp3")
			srv := NewDeviceService(dev.URL())

			updated, err := srv.RenameFile(ctx, "a.mp3", "c.mp3")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !updated {
				t.Error("expected mappingsUpdated for mapped file")
			}

			updated, err = srv.RenameFile(ctx, "b.mp3", "d.mp3")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if updated {
				t.Error("expected no mapping update for unmapped file")
			}
		})

		t.Run("Exists", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.AddSong("a.mp3", 10, 0)
			dev.AddSong("b.mp3", 10, 0)

			_, err := NewDeviceService(dev.URL()).RenameFile(ctx, "a.mp3", "b.mp3")
			if !errors.Is(err, shared.ErrFileExists) {
				t.Errorf("expected ErrFileExists, got %v", err)
			}
		})

		t.Run("Other Failure Carries Message", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			_, err := NewDeviceService(dev.URL()).RenameFile(ctx, "missing.mp3", "b.mp3")
			if !errors.Is(err, shared.ErrDeviceFailure) {
				t.Errorf("expected ErrDeviceFailure, got %v", err)
			}
			if err == nil || !strings.Contains(err.Error(), "file not found") {
				t.Errorf("expected device message in error, got %v", err)
			}
		})

		t.Run("Non-MP3 Name Sends Nothing", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			_, err := NewDeviceService(dev.URL()).RenameFile(ctx, "a.mp3", "a.wav")
			if !errors.Is(err, shared.ErrInvalidFilename) {
				t.Errorf("expected ErrInvalidFilename, got %v", err)
			}
			if len(dev.Requests()) != 0 {
				t.Errorf("expected no requests, got %v", dev.Paths())
			}
		})
	})

	t.Run("DeleteFile", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.AddSong("a.mp3", 10, 0)

			if err := NewDeviceService(dev.URL()).DeleteFile(ctx, "a.mp3"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(dev.Songs()) != 0 {
				t.Errorf("expected file removed, got %v", dev.Songs())
			}
		})

		t.Run("In Use", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.AddSong("a.mp3", 10, 0)
			dev.AddMapping("04a1", "a.mp3")

			err := NewDeviceService(dev.URL()).DeleteFile(ctx, "a.mp3")
			if !errors.Is(err, shared.ErrFileInUse) {
				t.Errorf("expected ErrFileInUse, got %v", err)
			}
		})
	})

	t.Run("Download", func(t *testing.T) {
		t.Run("Streams Contents", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.SetFile("a b.mp3", []byte("ID3 audio"))

			var buf bytes.Buffer
			n, err := NewDeviceService(dev.URL()).Download(ctx, "a b.mp3", &buf)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if n != 9 || buf.String() != "ID3 audio" {
				t.Errorf("unexpected download %d %q", n, buf.String())
			}
			if q := dev.Requests()[0].Query; q != "file=a+b.mp3" {
				t.Errorf("expected encoded query, got %s", q)
			}
		})

		t.Run("Missing File", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			_, err := NewDeviceService(dev.URL()).Download(ctx, "nope.mp3", io.Discard)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Write Failure", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.SetFile("a.mp3", []byte("ID3 audio"))

			if _, err := NewDeviceService(dev.URL()).Download(ctx, "a.mp3", &tu.FWriter{}); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("Upload", func(t *testing.T) {
		t.Run("Sends Multipart Data Field", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			data := bytes.Repeat([]byte("x"), 64*1024)

			var calls int
			var last, total int64
			err := NewDeviceService(dev.URL()).Upload(ctx, models.FileFromBytes("track.mp3", data), func(sent, size int64) {
				calls++
				last, total = sent, size
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if calls == 0 || last != int64(len(data)) || total != int64(len(data)) {
				t.Errorf("expected progress to reach %d, got %d/%d after %d calls", len(data), last, total, calls)
			}

			songs := dev.Songs()
			if len(songs) != 1 || songs[0].Name != "track.mp3" || songs[0].Size != int64(len(data)) {
				t.Errorf("unexpected stored songs %+v", songs)
			}
		})

		t.Run("Exact Content Length", func(t *testing.T) {
			var got int64
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.ContentLength
				body, _ := io.ReadAll(r.Body)
				if int64(len(body)) != r.ContentLength {
					t.Errorf("body length %d != content length %d", len(body), r.ContentLength)
				}
				w.Write([]byte(`{"result":"OK"}`))
			}))
			defer server.Close()

			err := NewDeviceService(server.URL).Upload(ctx, models.FileFromBytes("a.mp3", []byte("abc")), nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got <= 3 {
				t.Errorf("expected content length to include form framing, got %d", got)
			}
		})

		t.Run("Application Failure", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.FailUpload("a.mp3", "SD card full")

			err := NewDeviceService(dev.URL()).Upload(ctx, models.FileFromBytes("a.mp3", []byte("abc")), nil)
			var re *ResultError
			if !errors.As(err, &re) {
				t.Fatalf("expected ResultError, got %v", err)
			}
			if re.Reason() != "SD card full" {
				t.Errorf("expected device message, got %q", re.Reason())
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			dev.Override("/upload", tu.Response{Status: http.StatusInternalServerError})

			err := NewDeviceService(dev.URL()).Upload(ctx, models.FileFromBytes("a.mp3", []byte("abc")), nil)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Rejects Non-MP3", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)

			err := NewDeviceService(dev.URL()).Upload(ctx, models.FileFromBytes("a.flac", []byte("abc")), nil)
			if !errors.Is(err, shared.ErrInvalidFilename) {
				t.Errorf("expected ErrInvalidFilename, got %v", err)
			}
			if len(dev.Requests()) != 0 {
				t.Errorf("expected no requests, got %v", dev.Paths())
			}
		})

		t.Run("Read Failure Mid-File", func(t *testing.T) {
			dev := tu.NewFakeDevice(t)
			data := []byte("0123456789")
			blob := models.NewFileBlob("a.mp3", int64(len(data)), func() (io.ReadCloser, error) {
				return tu.NewFailAfterReader(data, 4), nil
			})

			if err := NewDeviceService(dev.URL()).Upload(ctx, blob, nil); err == nil {
				t.Fatal("expected error when the local file fails mid-read")
			}
			if len(dev.Songs()) != 0 {
				t.Errorf("expected nothing stored, got %v", dev.Songs())
			}
		})

		t.Run("Open Failure", func(t *testing.T) {
			blob := models.NewFileBlob("a.mp3", 3, func() (io.ReadCloser, error) {
				return nil, errors.New("permission denied")
			})

			err := NewDeviceService("http://127.0.0.1:1").Upload(ctx, blob, nil)
			if err == nil || !strings.Contains(err.Error(), "permission denied") {
				t.Errorf("expected open error, got %v", err)
			}
		})
	})

	t.Run("DownloadURL", func(t *testing.T) {
		srv := NewDeviceService("http://192.168.4.1")
		if got := srv.DownloadURL("my song.mp3"); got != "http://192.168.4.1/download?file=my+song.mp3" {
			t.Errorf("unexpected URL %s", got)
		}
	})
}

func TestResultError(t *testing.T) {
	tests := []struct {
		name   string
		err    *ResultError
		target error
		reason string
	}{
		{"exists", &ResultError{Op: "renamefile", Result: "EXISTS"}, shared.ErrFileExists, "EXISTS"},
		{"in use", &ResultError{Op: "deletefile", Result: "INUSE"}, shared.ErrFileInUse, "INUSE"},
		{"message", &ResultError{Op: "upload", Result: "ERROR", Message: "disk full"}, shared.ErrDeviceFailure, "disk full"},
		{"status only", &ResultError{Op: "delmapping", Status: 500}, shared.ErrDeviceFailure, "HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("expected %v to match %v", tt.err, tt.target)
			}
			if tt.err.Reason() != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, tt.err.Reason())
			}
			if !strings.HasPrefix(tt.err.Error(), tt.err.Op+":") {
				t.Errorf("expected op prefix, got %q", tt.err.Error())
			}
		})
	}
}
