package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

func page(status int, body string) dealer.Page {
	return dealer.Page{StatusCode: status, Body: []byte(body)}
}

func TestShouldPromote(t *testing.T) {
	t.Parallel()

	bigStatic := "<html><body>" + strings.Repeat("<p>static dealer directory prose</p>", 200) + "</body></html>"

	cases := []struct {
		name string
		page dealer.Page
		want bool
	}{
		{"non-200 never promotes", page(404, ""), false},
		{"empty body promotes", page(200, ""), true},
		{"cards already present", page(200, `<div class="deal-crd"><h3>ABC Motors</h3></div>`), false},
		{"small js shell promotes", page(200, `<html><script src="app.js"></script></html>`), true},
		{"spa root promotes", page(200, `<html><body><div id="root"></div>`+strings.Repeat(" ", 4096)+`</body></html>`), true},
		{"large static page without cards stays", page(200, bigStatic), false},
	}

	h := New(2048)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, h.ShouldPromote(tc.page))
		})
	}
}
