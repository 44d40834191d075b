package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/vdavid/mailmate/internal/relaytwin"
)

// TestRelay is a relay twin running on an httptest server.
type TestRelay struct {
	Server *httptest.Server
	Store  *relaytwin.Store
	// EndpointURL is the full send-email URL.
	EndpointURL string
}

// NewTestRelay starts a relay twin that is closed when the test ends.
func NewTestRelay(t *testing.T, opts relaytwin.Options) *TestRelay {
	t.Helper()

	store := relaytwin.NewStore()
	srv := httptest.NewServer(relaytwin.NewRouter(store, opts))
	t.Cleanup(srv.Close)

	return &TestRelay{
		Server:      srv,
		Store:       store,
		EndpointURL: srv.URL + relaytwin.SendEmailPath,
	}
}

// Fail makes the relay answer every send with status and body.
func (r *TestRelay) Fail(status int, body string) {
	r.Store.SetFault(&relaytwin.Fault{StatusCode: status, Body: body})
}

// DropConnections makes the relay close connections without responding.
func (r *TestRelay) DropConnections() {
	r.Store.SetFault(&relaytwin.Fault{DropConnection: true})
}

// Submissions returns what the relay accepted.
func (r *TestRelay) Submissions() []relaytwin.Submission {
	return r.Store.Submissions()
}
