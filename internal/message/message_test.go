package message

import (
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vars = Vars{SenderName: "asha rao", RunID: "r1", Now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}

func TestRender_PlainTextUnchanged(t *testing.T) {
	out, err := Render("Hello, I found your business online.", vars)
	require.NoError(t, err)
	assert.Equal(t, "Hello, I found your business online.", out)
}

func TestRender_Variables(t *testing.T) {
	out, err := Render("Hi, this is {{ sender_name | titlecase }}. Happy {{ weekday }} ({{ run_date }})!", vars)
	require.NoError(t, err)
	assert.Equal(t, "Hi, this is Asha Rao. Happy Monday (2026-03-02)!", out)
}

func TestRender_TitleCaseNonASCII(t *testing.T) {
	out, err := Render("{{ sender_name | titlecase }}", Vars{SenderName: "élodie ÖMER"})
	require.NoError(t, err)
	assert.Equal(t, "Élodie Ömer", out)
	assert.True(t, utf8.ValidString(out))
}

func TestRender_MissingVariableIsEmpty(t *testing.T) {
	out, err := Render("Hello{{ nickname }}!", vars)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", out)
}

func TestRender_SyntaxError(t *testing.T) {
	_, err := Render("Hello {% if %}", vars)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrConfiguration))
}

func TestRender_EmptyOutput(t *testing.T) {
	_, err := Render("{{ nickname }}  ", vars)
	assert.True(t, errors.Is(err, dispatch.ErrConfiguration))
}
