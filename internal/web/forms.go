package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/schema"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// claimListForm is the query string of the claim list.
type claimListForm struct {
	Search string `schema:"search"`
	Status string `schema:"status"`
	Page   string `schema:"page"`
}

func (f claimListForm) query() core.ClaimQuery {
	return core.ClaimQuery{
		ClaimFilter: core.ClaimFilter{Search: f.Search, Status: f.Status},
		Page:        parsePage(f.Page),
	}
}

// parsePage reads a page number. Anything that is not an integer means
// the first page; the service clamps out-of-range numbers.
func parsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1
	}
	return n
}

type loginForm struct {
	Username string `schema:"username"`
	Password string `schema:"password"`
	Next     string `schema:"next"`
}

type registerForm struct {
	Username string `schema:"username"`
	Password string `schema:"password"`
	Confirm  string `schema:"confirm"`
}

type noteForm struct {
	Note string `schema:"note"`
}

// importForm carries the non-file fields of an upload.
type importForm struct {
	Mode   string `schema:"mode"`
	Policy string `schema:"policy"`
	Format string `schema:"format"`
}

func (f importForm) options() (core.ImportMode, core.ImportPolicy, error) {
	var (
		mode   core.ImportMode
		policy core.ImportPolicy
		err    error
	)
	if f.Mode != "" {
		if mode, err = core.ParseImportMode(f.Mode); err != nil {
			return "", "", err
		}
	}
	if f.Policy != "" {
		if policy, err = core.ParseImportPolicy(f.Policy); err != nil {
			return "", "", err
		}
	}
	return mode, policy, nil
}

// decodeQuery fills dst from the URL query.
func decodeQuery(r *http.Request, dst any) error {
	return decoder.Decode(dst, r.URL.Query())
}

// decodeForm fills dst from the parsed form. Call ParseForm or
// ParseMultipartForm first.
func decodeForm(r *http.Request, dst any) error {
	return decoder.Decode(dst, r.PostForm)
}
