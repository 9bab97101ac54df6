package testing

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/nfcbox/internal/models"
)

// RecordedRequest is one request observed by [FakeDevice].
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	JSON   map[string]any
	File   string // multipart file name for uploads
}

// Response overrides the device's answer for a path.
type Response struct {
	Status int
	Body   string
}

// FakeDevice emulates the jukebox REST surface in memory.
//
// Uploaded files become songs, mappings follow renames and requests are recorded in arrival order.
type FakeDevice struct {
	Server *httptest.Server

	mu          sync.Mutex
	songs       []models.Song
	mappings    []models.Mapping
	files       map[string][]byte
	tag         string
	requests    []RecordedRequest
	overrides   map[string]Response
	uploadFail  map[string]string
	inFlight    int
	maxInFlight int
	clock       func() time.Time
	uploadDelay time.Duration
}

// NewFakeDevice starts a fake jukebox that is closed when the test ends.
func NewFakeDevice(t *testing.T) *FakeDevice {
	t.Helper()

	d := &FakeDevice{
		files:      map[string][]byte{},
		overrides:  map[string]Response{},
		uploadFail: map[string]string{},
		clock:      func() time.Time { return time.Unix(1700000000, 0) },
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(d.track)
	r.Use(d.override)

	r.Get("/songs", d.handleSongs)
	r.Get("/mappings", d.handleMappings)
	r.Get("/tagid", d.handleTagID)
	r.Get("/download", d.handleDownload)
	r.Post("/addmapping", d.handleAddMapping)
	r.Post("/delmapping", d.handleDelMapping)
	r.Post("/upload", d.handleUpload)
	r.Post("/renamefile", d.handleRename)
	r.Post("/deletefile", d.handleDelete)

	d.Server = httptest.NewServer(r)
	t.Cleanup(d.Server.Close)
	return d
}

// URL returns the base URL of the fake device.
func (d *FakeDevice) URL() string {
	return d.Server.URL
}

// AddSong stores a song with contents of the given size.
func (d *FakeDevice) AddSong(name string, size int64, timestamp int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.songs = append(d.songs, models.Song{Name: name, Size: size, Timestamp: timestamp})
	d.files[name] = make([]byte, size)
}

// SetFile stores a song with explicit contents.
func (d *FakeDevice) SetFile(name string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.songs = append(d.songs, models.Song{Name: name, Size: int64(len(data)), Timestamp: d.clock().Unix()})
	d.files[name] = data
}

// AddMapping stores a mapping without recording a request.
func (d *FakeDevice) AddMapping(tag, song string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mappings = append(d.mappings, models.Mapping{TagID: tag, Song: song})
}

// ClearMappings drops every stored mapping without recording a request.
func (d *FakeDevice) ClearMappings() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mappings = nil
}

// SetTag sets the tag currently presented to the reader. Empty means no tag.
func (d *FakeDevice) SetTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tag = tag
}

// Override answers every request to path with resp.
func (d *FakeDevice) Override(path string, resp Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[path] = resp
}

// FailUpload makes the upload of name fail with an application error.
func (d *FakeDevice) FailUpload(name, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploadFail[name] = message
}

// SlowUploads delays every upload response.
func (d *FakeDevice) SlowUploads(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploadDelay = delay
}

// Songs returns a copy of the stored songs.
func (d *FakeDevice) Songs() []models.Song {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Song(nil), d.songs...)
}

// Mappings returns a copy of the stored mappings.
func (d *FakeDevice) Mappings() []models.Mapping {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Mapping(nil), d.mappings...)
}

// Requests returns every recorded request in arrival order.
func (d *FakeDevice) Requests() []RecordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RecordedRequest(nil), d.requests...)
}

// Paths returns "METHOD /path" for every recorded request.
func (d *FakeDevice) Paths() []string {
	reqs := d.Requests()
	paths := make([]string, len(reqs))
	for i, r := range reqs {
		paths[i] = r.Method + " " + r.Path
	}
	return paths
}

// Count returns how many requests hit path.
func (d *FakeDevice) Count(path string) int {
	n := 0
	for _, r := range d.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Writes returns the recorded POST requests.
func (d *FakeDevice) Writes() []RecordedRequest {
	var writes []RecordedRequest
	for _, r := range d.Requests() {
		if r.Method == http.MethodPost {
			writes = append(writes, r)
		}
	}
	return writes
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (d *FakeDevice) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight
}

// Reset clears recorded requests.
func (d *FakeDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = nil
	d.maxInFlight = 0
}

func (d *FakeDevice) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.inFlight++
		d.maxInFlight = max(d.maxInFlight, d.inFlight)
		d.mu.Unlock()

		defer func() {
			d.mu.Lock()
			d.inFlight--
			d.mu.Unlock()
		}()

		next.ServeHTTP(w, r)
	})
}

func (d *FakeDevice) override(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		resp, ok := d.overrides[r.URL.Path]
		d.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		rec := RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if _, header, err := r.FormFile("data"); err == nil {
				rec.File = header.Filename
			}
		} else if r.Method == http.MethodPost {
			rec.JSON = decodeBody(r.Body)
		}
		d.record(rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		io.WriteString(w, resp.Body)
	})
}

func (d *FakeDevice) record(r RecordedRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, r)
}

func decodeBody(body io.Reader) map[string]any {
	var m map[string]any
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		return nil
	}
	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (d *FakeDevice) handleSongs(w http.ResponseWriter, r *http.Request) {
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path})
	writeJSON(w, http.StatusOK, d.Songs())
}

func (d *FakeDevice) handleMappings(w http.ResponseWriter, r *http.Request) {
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path})
	writeJSON(w, http.StatusOK, d.Mappings())
}

func (d *FakeDevice) handleTagID(w http.ResponseWriter, r *http.Request) {
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path})
	d.mu.Lock()
	tag := d.tag
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"tagid": tag})
}

func (d *FakeDevice) handleDownload(w http.ResponseWriter, r *http.Request) {
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
	name := r.URL.Query().Get("file")

	d.mu.Lock()
	data, ok := d.files[name]
	d.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(data)
}

func (d *FakeDevice) handleAddMapping(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r.Body)
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path, JSON: body})

	tag, _ := body["tagid"].(string)
	song, _ := body["song"].(string)
	if tag == "" || song == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"result": "ERROR", "message": "missing tagid or song"})
		return
	}

	d.mu.Lock()
	d.mappings = append(d.mappings, models.Mapping{TagID: tag, Song: song})
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"result": "OK"})
}

func (d *FakeDevice) handleDelMapping(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r.Body)
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path, JSON: body})

	tag, _ := body["tagid"].(string)

	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.mappings[:0]
	found := false
	for _, m := range d.mappings {
		if m.TagID == tag {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	d.mappings = kept
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"result": "NOTFOUND"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "OK"})
}

func (d *FakeDevice) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("data")
	if err != nil {
		d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path})
		writeJSON(w, http.StatusBadRequest, map[string]string{"result": "ERROR", "message": err.Error()})
		return
	}
	defer file.Close()

	name := header.Filename
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path, File: name})

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"result": "ERROR", "message": err.Error()})
		return
	}

	d.mu.Lock()
	delay := d.uploadDelay
	reason, fail := d.uploadFail[name]
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		writeJSON(w, http.StatusOK, map[string]string{"result": "ERROR", "message": reason})
		return
	}

	d.mu.Lock()
	d.songs = append(d.songs, models.Song{Name: name, Size: int64(len(data)), Timestamp: d.clock().Unix()})
	d.files[name] = data
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"result": "OK"})
}

func (d *FakeDevice) handleRename(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r.Body)
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path, JSON: body})

	oldName, _ := body["oldname"].(string)
	newName, _ := body["newname"].(string)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.files[newName]; exists {
		writeJSON(w, http.StatusOK, map[string]string{"result": "EXISTS"})
		return
	}
	data, ok := d.files[oldName]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"result": "ERROR", "message": "file not found"})
		return
	}

	delete(d.files, oldName)
	d.files[newName] = data
	for i := range d.songs {
		if d.songs[i].Name == oldName {
			d.songs[i].Name = newName
		}
	}

	updated := false
	for i := range d.mappings {
		if d.mappings[i].Song == oldName {
			d.mappings[i].Song = newName
			updated = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": "OK", "mappingsUpdated": updated})
}

func (d *FakeDevice) handleDelete(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r.Body)
	d.record(RecordedRequest{Method: r.Method, Path: r.URL.Path, JSON: body})

	name, _ := body["filename"].(string)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range d.mappings {
		if m.Song == name {
			writeJSON(w, http.StatusOK, map[string]string{"result": "INUSE"})
			return
		}
	}
	if _, ok := d.files[name]; !ok {
		writeJSON(w, http.StatusOK, map[string]string{"result": "ERROR", "message": "file not found"})
		return
	}

	delete(d.files, name)
	kept := d.songs[:0]
	for _, s := range d.songs {
		if s.Name != name {
			kept = append(kept, s)
		}
	}
	d.songs = kept
	writeJSON(w, http.StatusOK, map[string]string{"result": "OK"})
}
