package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	subject, body, err := Render(&Message{Kind: KIND_CONFIRM, To: "a@b.de", Link: "https://plants.example/auth/callback?token=abc&type=signup"})
	require.NoError(t, err)

	assert.Equal(t, "Bestätige deine E-Mail-Adresse | PlantCare", subject)
	// html/template escapes & inside attributes
	assert.Contains(t, body, "https://plants.example/auth/callback?token=abc&amp;type=signup")

	subject, body, err = Render(&Message{Kind: KIND_RECOVERY, Link: "https://plants.example/x"})
	require.NoError(t, err)
	assert.Equal(t, "Passwort zurücksetzen | PlantCare", subject)
	assert.Contains(t, body, "Neues Passwort festlegen")
}

func TestRender_UnknownKind(t *testing.T) {
	_, _, err := Render(&Message{Kind: "newsletter"})
	assert.Error(t, err)
}

func TestQueue_RejectsUnknownKindWithoutRedis(t *testing.T) {
	q := &Queue{}
	assert.Error(t, q.Send(context.Background(), &Message{Kind: "newsletter"}))
}
