package checkout

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"commerce-gateway/internal/crm"
)

const apiPrefix = "/services/data/v62.0"

// call is one request seen by fakeOrg.
type call struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

// fakeOrg is an in-memory CRM org answering the saga's requests.
type fakeOrg struct {
	mu    sync.Mutex
	calls []call
	ids   int

	standardBook  string
	entries       map[string]string // product ID → existing entry ID
	contacts      map[string]string // contact ID → account ID
	emailContacts map[string]string // email → contact ID
	member        bool
	failObject    string
	orderNumber   string
}

func newFakeOrg() *fakeOrg {
	return &fakeOrg{
		standardBook:  "01sSTD",
		entries:       map[string]string{},
		contacts:      map[string]string{"003C1": "001A1"},
		emailContacts: map[string]string{},
		orderNumber:   "00000101",
	}
}

func (f *fakeOrg) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := call{Method: r.Method, Path: strings.TrimPrefix(r.URL.Path, apiPrefix), Query: r.URL.Query().Get("q")}
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		json.Unmarshal(body, &c.Body)
	}
	f.calls = append(f.calls, c)

	switch {
	case c.Path == "/query":
		f.query(w, c.Query)
	case r.Method == http.MethodPost:
		object := strings.TrimPrefix(c.Path, "/sobjects/")
		if object == f.failObject {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`[{"message":"required field missing","errorCode":"REQUIRED_FIELD_MISSING"}]`))
			return
		}
		f.ids++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"%s-%d","success":true,"errors":[]}`, object, f.ids)
	case r.Method == http.MethodPatch:
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(c.Path, "/sobjects/Contact/"):
		id := strings.TrimPrefix(c.Path, "/sobjects/Contact/")
		account, ok := f.contacts[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`[{"errorCode":"NOT_FOUND","message":"not found"}]`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"Id": id, "AccountId": account})
	case strings.HasPrefix(c.Path, "/sobjects/Order/"):
		json.NewEncoder(w).Encode(map[string]string{"OrderNumber": f.orderNumber})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeOrg) query(w http.ResponseWriter, q string) {
	var records []map[string]interface{}
	switch {
	case strings.Contains(q, "FROM Pricebook2"):
		if f.standardBook != "" {
			records = append(records, map[string]interface{}{"Id": f.standardBook})
		}
	case strings.Contains(q, "FROM PricebookEntry"):
		for product, entry := range f.entries {
			if strings.Contains(q, "'"+product+"'") {
				records = append(records, map[string]interface{}{"Id": entry, "Product2Id": product, "UnitPrice": 10})
			}
		}
	case strings.Contains(q, "FROM LoyaltyProgramMember"):
		if f.member {
			records = append(records, map[string]interface{}{"Id": "0lMM1", "ProgramId": "0lpP1"})
		}
	case strings.Contains(q, "FROM LoyaltyProgramCurrency"):
		records = append(records, map[string]interface{}{"Id": "0lcC1"})
	case strings.Contains(q, "FROM Contact WHERE AccountId"):
		for id, account := range f.contacts {
			if strings.Contains(q, "'"+account+"'") {
				records = append(records, map[string]interface{}{"Id": id})
			}
		}
	case strings.Contains(q, "FROM Contact WHERE Email"):
		for email, id := range f.emailContacts {
			if strings.Contains(q, "'"+email+"'") {
				records = append(records, map[string]interface{}{"Id": id, "AccountId": f.contacts[id]})
			}
		}
	}
	if records == nil {
		records = []map[string]interface{}{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"totalSize": len(records),
		"done":      true,
		"records":   records,
	})
}

// writes returns the POST/PATCH calls in order as "METHOD path".
func (f *fakeOrg) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Method == http.MethodPost || c.Method == http.MethodPatch {
			out = append(out, c.Method+" "+c.Path)
		}
	}
	return out
}

// bodies returns the bodies of calls with method to path.
func (f *fakeOrg) bodies(method, path string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]interface{}
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c.Body)
		}
	}
	return out
}

func (f *fakeOrg) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testDay = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, org *fakeOrg, cfg Config) *Service {
	t.Helper()
	srv := httptest.NewServer(org)
	t.Cleanup(srv.Close)

	client := crm.New(crm.Config{InstanceURL: srv.URL, APIVersion: "v62.0"})
	return New(client, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return testDay }),
		WithPicker(func(int) int { return 0 }),
	)
}
