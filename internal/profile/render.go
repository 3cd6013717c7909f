package profile

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

const cardSize = 512

var tierColors = map[string]color.NRGBA{
	types.TrustTierNew:      {R: 0x64, G: 0x74, B: 0x8B, A: 0xFF},
	types.TrustTierStandard: {R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF},
	types.TrustTierTrusted:  {R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF},
	types.TrustTierExemplar: {R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF},
}

// CardRenderer paints the profile's display asset: a tier-colored medallion
// with the strongest badge's monogram and the prestige total.
type CardRenderer struct {
	log        *logger.Logger
	titleFace  font.Face
	footerFace font.Face
}

func NewCardRenderer(log *logger.Logger) (*CardRenderer, error) {
	rendererLog := log.With("component", "profile_card")

	fontPath := os.Getenv("PROFILE_BADGE_FONT")
	if strings.TrimSpace(fontPath) == "" {
		return nil, fmt.Errorf("Env var PROFILE_BADGE_FONT is empty")
	}
	rendererLog.Info("Loading profile card font", "font", fontPath)

	titleFace, err := loadFontFace(fontPath, 168)
	if err != nil {
		return nil, fmt.Errorf("could not load card font: %w", err)
	}
	footerFace, err := loadFontFace(fontPath, 52)
	if err != nil {
		return nil, fmt.Errorf("could not load card footer font: %w", err)
	}

	return &CardRenderer{
		log:        rendererLog,
		titleFace:  titleFace,
		footerFace: footerFace,
	}, nil
}

// Render produces the PNG card for one profile.
func (cr *CardRenderer) Render(tier string, prestige int, badges []Badge) (bytes.Buffer, error) {
	dc := gg.NewContext(cardSize, cardSize)

	cx, cy := float64(cardSize)/2, float64(cardSize)/2

	// Clip to circle
	dc.DrawCircle(cx, cy, float64(cardSize)/2)
	dc.Clip()

	dc.SetColor(tierColor(tier))
	dc.DrawRectangle(0, 0, float64(cardSize), float64(cardSize))
	dc.Fill()

	// Inner ring
	dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0x59})
	dc.SetLineWidth(10)
	dc.DrawCircle(cx, cy, float64(cardSize)/2-18)
	dc.Stroke()

	mono := cardMonogram(tier, badges)
	dc.SetFontFace(cr.titleFace)
	tw, th := dc.MeasureString(mono)
	dc.SetColor(color.White)
	dc.DrawString(mono, cx-(tw/2), cy+(th/2)-44)

	footer := fmt.Sprintf("%d", prestige)
	dc.SetFontFace(cr.footerFace)
	fw, _ := dc.MeasureString(footer)
	dc.DrawString(footer, cx-(fw/2), cy+148)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func tierColor(tier string) color.NRGBA {
	if c, ok := tierColors[tier]; ok {
		return c
	}
	return tierColors[types.TrustTierNew]
}

// cardMonogram takes the first letters of the strongest badge's first two
// label words, falling back to the tier's leading letters for a profile with
// no badges yet.
func cardMonogram(tier string, badges []Badge) string {
	if len(badges) > 0 {
		words := strings.Fields(badges[0].Label)
		if len(words) >= 2 {
			return strings.ToUpper(words[0][:1] + words[1][:1])
		}
		if len(words) == 1 {
			return strings.ToUpper(words[0][:1])
		}
	}
	if len(tier) >= 2 {
		return strings.ToUpper(tier[:2])
	}
	return "??"
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return face, nil
}
