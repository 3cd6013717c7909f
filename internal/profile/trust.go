package profile

import (
	"time"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

// TrustConfig gates each tier on minimum authenticity and tenure. A tier is
// reached only when both gates hold.
type TrustConfig struct {
	StandardAuth   float64
	TrustedAuth    float64
	ExemplarAuth   float64
	StandardTenure time.Duration
	TrustedTenure  time.Duration
	ExemplarTenure time.Duration
}

func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		StandardAuth:   envutil.Float("TRUST_STANDARD_AUTH", 0.5, 0, 1),
		TrustedAuth:    envutil.Float("TRUST_TRUSTED_AUTH", 0.8, 0, 1),
		ExemplarAuth:   envutil.Float("TRUST_EXEMPLAR_AUTH", 0.9, 0, 1),
		StandardTenure: envutil.Duration("TRUST_STANDARD_TENURE", 7*24*time.Hour),
		TrustedTenure:  envutil.Duration("TRUST_TRUSTED_TENURE", 60*24*time.Hour),
		ExemplarTenure: envutil.Duration("TRUST_EXEMPLAR_TENURE", 180*24*time.Hour),
	}
}

// TrustTier maps aggregate authenticity and account tenure onto a tier,
// checking from the top down.
func TrustTier(authenticity float64, tenure time.Duration, cfg TrustConfig) string {
	switch {
	case authenticity >= cfg.ExemplarAuth && tenure >= cfg.ExemplarTenure:
		return types.TrustTierExemplar
	case authenticity >= cfg.TrustedAuth && tenure >= cfg.TrustedTenure:
		return types.TrustTierTrusted
	case authenticity >= cfg.StandardAuth && tenure >= cfg.StandardTenure:
		return types.TrustTierStandard
	default:
		return types.TrustTierNew
	}
}

// Authenticity aggregates recent fraud risk scores into a 0..1 authenticity
// value. No risk evidence reads as fully authentic; the tenure gate keeps a
// brand-new account out of the upper tiers regardless.
func Authenticity(risks []float64) float64 {
	if len(risks) == 0 {
		return 1
	}
	var sum float64
	for _, r := range risks {
		sum += clamp01(r)
	}
	return clamp01(1 - sum/float64(len(risks)))
}
