package wattbox

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// loginForm is the subset of an HTML login form needed to submit it.
type loginForm struct {
	Action    string
	Method    string
	UserField string
	PassField string
	Hidden    url.Values
}

func (f *loginForm) values(username, password string) url.Values {
	v := url.Values{}
	for k, vals := range f.Hidden {
		v[k] = append([]string(nil), vals...)
	}
	v.Set(f.UserField, username)
	v.Set(f.PassField, password)
	return v
}

// findLoginForm returns the first form on the page holding a password input.
func findLoginForm(body []byte) (*loginForm, bool) {
	if !bytes.Contains(bytes.ToLower(body), []byte("password")) {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	var found *loginForm
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		f := &loginForm{Hidden: url.Values{}}
		form.Find("input").Each(func(_ int, in *goquery.Selection) {
			name, _ := in.Attr("name")
			if name == "" {
				return
			}
			typ := strings.ToLower(strings.TrimSpace(in.AttrOr("type", "text")))
			switch typ {
			case "password":
				if f.PassField == "" {
					f.PassField = name
				}
			case "hidden":
				f.Hidden.Add(name, in.AttrOr("value", ""))
			case "text", "email", "":
				lower := strings.ToLower(name)
				if f.UserField == "" || strings.Contains(lower, "user") || strings.Contains(lower, "login") {
					f.UserField = name
				}
			}
		})
		if f.PassField == "" {
			return true
		}
		if f.UserField == "" {
			f.UserField = "username"
		}
		f.Action = strings.TrimSpace(form.AttrOr("action", ""))
		f.Method = http.MethodPost
		if strings.EqualFold(strings.TrimSpace(form.AttrOr("method", "")), http.MethodGet) {
			f.Method = http.MethodGet
		}
		found = f
		return false
	})
	return found, found != nil
}
