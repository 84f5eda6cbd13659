package service

import (
	"context"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/models"
)

// Image types the generative API accepts as inline data.
var supportedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif"}

// Language is a translation target offered to the user.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists translation targets in display order.
var Languages = []Language{
	{"en", "English"},
	{"es", "Spanish"},
	{"hi", "Hindi"},
	{"ta", "Tamil"},
	{"bn", "Bengali"},
	{"pt", "Portuguese"},
	{"ar", "Arabic"},
	{"sw", "Swahili"},
}

// LanguageName returns the display name for code, falling back to English.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return "English"
}

// Detector diagnoses plant photos and translates the resulting text.
type Detector struct {
	ai            gateway.AI
	maxImageBytes int64
	guard         *inflightGuard
}

// NewDetector returns a Detector. maxImageBytes <= 0 disables the size check.
func NewDetector(ai gateway.AI, maxImageBytes int64) *Detector {
	return &Detector{ai: ai, maxImageBytes: maxImageBytes, guard: newInflightGuard()}
}

// Diagnose validates image and asks the gateway for an analysis. owner identifies
// the user; a second call from the same owner while one is pending returns ErrBusy.
func (d *Detector) Diagnose(ctx context.Context, owner string, image []byte) (models.DiseaseAnalysis, error) {
	if len(image) == 0 {
		return models.DiseaseAnalysis{}, invalidInput(MsgNoImage)
	}
	if d.maxImageBytes > 0 && int64(len(image)) > d.maxImageBytes {
		return models.DiseaseAnalysis{}, invalidInput(MsgImageTooLarge)
	}
	mimeType, ok := detectImageType(image)
	if !ok {
		return models.DiseaseAnalysis{}, invalidInput(MsgUnsupportedImage)
	}

	key := owner + "/diagnose"
	if !d.guard.acquire(key) {
		recordBusy("diagnose")
		return models.DiseaseAnalysis{}, busy()
	}
	defer d.guard.release(key)

	start := time.Now()
	analysis, err := d.ai.DiagnoseImage(ctx, image, mimeType)
	if err != nil {
		return models.DiseaseAnalysis{}, aiFailure(err, MsgDiagnoseInvalid)
	}
	loggerFromContext(ctx).Info("diagnosis complete",
		zap.String("mimeType", mimeType),
		zap.Int("imageBytes", len(image)),
		zap.Bool("healthy", analysis.IsHealthy),
		zap.Duration("duration", time.Since(start)),
	)
	return analysis, nil
}

// Translate renders text in the language identified by languageCode.
func (d *Detector) Translate(ctx context.Context, owner, text, languageCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalidInput(MsgNothingToTranslate)
	}
	key := owner + "/translate"
	if !d.guard.acquire(key) {
		recordBusy("translate")
		return "", busy()
	}
	defer d.guard.release(key)

	out, err := d.ai.Translate(ctx, text, LanguageName(languageCode))
	if err != nil {
		return "", aiFailure(err, MsgTranslateFailed)
	}
	return out, nil
}

func detectImageType(image []byte) (string, bool) {
	m := mimetype.Detect(image)
	for _, t := range supportedImageTypes {
		if m.Is(t) {
			return t, true
		}
	}
	return m.String(), false
}
