// Package message renders the run-level outreach text. MSG_TEXT may use
// Liquid syntax; it is rendered once per run so every lead receives the same
// body.
package message

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"github.com/osteele/liquid"
)

// Vars are the values available to the template.
type Vars struct {
	SenderName string
	RunID      string
	Now        time.Time
}

func (v Vars) bindings() map[string]interface{} {
	return map[string]interface{}{
		"sender_name": v.SenderName,
		"run_id":      v.RunID,
		"run_date":    v.Now.Format("2006-01-02"),
		"weekday":     v.Now.Weekday().String(),
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Render parses and renders text. A template that fails to parse or renders
// to whitespace is a configuration error.
func Render(text string, vars Vars) (string, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("titlecase", titleCase)

	tpl, err := engine.ParseString(text)
	if err != nil {
		return "", fmt.Errorf("%w: MSG_TEXT: %v", dispatch.ErrConfiguration, err)
	}
	out, err := tpl.RenderString(vars.bindings())
	if err != nil {
		return "", fmt.Errorf("%w: MSG_TEXT: %v", dispatch.ErrConfiguration, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: MSG_TEXT renders to an empty message", dispatch.ErrConfiguration)
	}
	return out, nil
}
