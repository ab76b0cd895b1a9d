package fetch

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// loginForm is a credential form ready to submit: resolved action URL and
// the full field set including hidden inputs (CSRF tokens and the like).
type loginForm struct {
	Action string
	Values url.Values
}

// usernameFieldNames are tried in order before falling back to the first
// plain text input. The list mirrors the field name variants seen on the
// upstream login page across redesigns.
var usernameFieldNames = []string{"username", "loginId", "login_id", "user", "email"}

// findLoginForm locates the first form containing a password input and fills
// it in. Hidden fields keep their server-provided values; the username lands
// in the best-matching text field; a named submit button is included so the
// server sees a regular form submission.
func findLoginForm(doc *html.Node, base *url.URL, username, password string) (*loginForm, error) {
	form := firstNode(doc, func(n *html.Node) bool {
		return isElem(n, "form") && firstNode(n, isPasswordInput) != nil
	})
	if form == nil {
		return nil, errors.New("login form not found on login page")
	}

	values := url.Values{}
	var passwordSet bool
	var textFields []*html.Node

	eachNode(form, func(n *html.Node) bool {
		if !isElem(n, "input") {
			return true
		}
		name := attr(n, "name")
		typ := strings.ToLower(attr(n, "type"))
		if typ == "" {
			typ = "text"
		}
		switch typ {
		case "password":
			if !passwordSet && name != "" {
				values.Set(name, password)
				passwordSet = true
			}
		case "hidden":
			if name != "" {
				values.Set(name, attr(n, "value"))
			}
		case "submit", "image":
			if name != "" {
				values.Set(name, attr(n, "value"))
			}
		case "checkbox", "radio":
			if name != "" && hasAttr(n, "checked") {
				v := attr(n, "value")
				if v == "" {
					v = "on"
				}
				values.Set(name, v)
			}
		case "text", "email", "tel":
			textFields = append(textFields, n)
		}
		return true
	})

	if !passwordSet {
		return nil, errors.New("login form has no named password field")
	}

	userField := pickUsernameField(textFields)
	if userField == nil {
		return nil, errors.New("login form has no username field")
	}
	values.Set(attr(userField, "name"), username)
	// Remaining text inputs keep their pre-filled values.
	for _, n := range textFields {
		if n == userField {
			continue
		}
		if name := attr(n, "name"); name != "" && !values.Has(name) {
			values.Set(name, attr(n, "value"))
		}
	}

	action := strings.TrimSpace(attr(form, "action"))
	target := base
	if action != "" {
		ref, err := url.Parse(action)
		if err != nil {
			return nil, errors.New("login form action is not a valid URL")
		}
		target = base.ResolveReference(ref)
	}
	return &loginForm{Action: target.String(), Values: values}, nil
}

// pickUsernameField prefers a known field name or id, the email type, and
// finally the first named text input.
func pickUsernameField(fields []*html.Node) *html.Node {
	match := func(n *html.Node, want string) bool {
		return strings.EqualFold(attr(n, "name"), want) || strings.EqualFold(attr(n, "id"), want)
	}
	for _, want := range usernameFieldNames {
		for _, n := range fields {
			if attr(n, "name") != "" && match(n, want) {
				return n
			}
		}
	}
	for _, n := range fields {
		if strings.EqualFold(attr(n, "type"), "email") && attr(n, "name") != "" {
			return n
		}
	}
	for _, n := range fields {
		if attr(n, "name") != "" {
			return n
		}
	}
	return nil
}

func isPasswordInput(n *html.Node) bool {
	return isElem(n, "input") && strings.EqualFold(attr(n, "type"), "password")
}

func isElem(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func eachNode(n *html.Node, fn func(*html.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachNode(c, fn)
	}
}

func firstNode(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var res *html.Node
	eachNode(n, func(cur *html.Node) bool {
		if res != nil {
			return false
		}
		if pred(cur) {
			res = cur
			return false
		}
		return true
	})
	return res
}
