package identifyflow

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math/rand"
	"net/http/httptest"
	"testing"

	"plantcareapi/internal/api/apitest"
	"plantcareapi/internal/router"
	"plantcareapi/pkg/client"
	"plantcareapi/pkg/imagenorm"
	"plantcareapi/pkg/plantid"
	"plantcareapi/pkg/schemas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// a noisy camera sized photo, several MiB at full quality
func largeJPEG(t *testing.T) []byte {
	t.Helper()
	const w, h = 3000, 2250
	rnd := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint8(rnd.Intn(60))
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(x/16) + n
			img.Pix[i+1] = 120 + n
			img.Pix[i+2] = uint8(y/16) + n/2
			img.Pix[i+3] = 255
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

func TestIdentifyFlow_EndToEnd(t *testing.T) {
	h, f := apitest.NewHandler(t)
	srv := httptest.NewServer(router.New(h))
	defer srv.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("Geheim123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.Users.CreateUser(context.Background(), &schemas.User{
		Email: "anna@example.de", PassHash: string(hash), EmailVerified: true,
	}))

	var received int
	f.Classifier.Fn = func(_ context.Context, mimeType string, image []byte) ([]plantid.Suggestion, error) {
		received = len(image)
		s := plantid.Suggestion{Name: "Ocimum basilicum", Probability: 0.92}
		s.Details.CommonNames = []string{"Basilikum"}
		return []plantid.Suggestion{s}, nil
	}

	api, err := client.New(srv.URL, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = api.Login(context.Background(), "anna@example.de", "Geheim123")
	require.NoError(t, err)

	var draft client.PlantDraft
	var photo []byte
	c := New(Options{
		Gateway:      api,
		Logger:       zaptest.NewLogger(t),
		OnPhotoReady: func(p []byte) { photo = p },
		OnSelect:     draft.FromSuggestion,
	})

	original := largeJPEG(t)
	require.GreaterOrEqual(t, len(original), 3<<20)
	require.Less(t, len(original), MAX_FILE_SIZE)

	s := c.SelectFile(context.Background(), original)
	results, ok := s.(Results)
	require.True(t, ok, "state %s", Name(s))

	// the server only saw the compressed photo
	require.NotNil(t, photo)
	assert.LessOrEqual(t, len(photo), imagenorm.TargetSize)
	assert.Equal(t, len(photo), received)

	assert.False(t, results.LowConfidence)
	require.Equal(t, []schemas.IdentifySuggestion{
		{Name: "Basilikum", Species: "Ocimum basilicum", Confidence: 92},
	}, results.Suggestions)

	require.True(t, c.SelectSuggestion(0))
	assert.Equal(t, "Basilikum", draft.Name)
	assert.Equal(t, "Ocimum basilicum", draft.Species)

	plant, err := api.CreatePlantWithPhoto(context.Background(), draft, photo)
	require.NoError(t, err)
	assert.Equal(t, "Basilikum", plant.Name)
	assert.Len(t, plant.Photos, 1)
}
