package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/profile"
)

// PublicProfile is the outward projection: derived labels and rounded
// scores only, never raw state or event material.
type PublicProfile struct {
	UserID    uuid.UUID       `json:"user_id"`
	TrustTier string          `json:"trust_tier"`
	Prestige  int             `json:"prestige"`
	Badges    []profile.Badge `json:"badges"`
	AssetURL  string          `json:"asset_url,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ProfileService interface {
	GetPublic(dbc dbctx.Context, userID uuid.UUID) (*PublicProfile, error)
	// Refresh queues a profile rebuild. Reports false when a refresh for
	// this user is already pending.
	Refresh(dbc dbctx.Context, userID uuid.UUID) (*types.JobRun, bool, error)
}

type profileService struct {
	db       *gorm.DB
	log      *logger.Logger
	profiles repos.SocialProfileRepo
	jobSvc   JobService
}

func NewProfileService(db *gorm.DB, baseLog *logger.Logger, profiles repos.SocialProfileRepo, jobSvc JobService) ProfileService {
	return &profileService{
		db:       db,
		log:      baseLog.With("service", "ProfileService"),
		profiles: profiles,
		jobSvc:   jobSvc,
	}
}

func (s *profileService) GetPublic(dbc dbctx.Context, userID uuid.UUID) (*PublicProfile, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user_id")
	}
	row, err := s.profiles.Get(dbc, userID)
	if err != nil {
		return nil, apierr.MapDBError("load profile", err)
	}
	if row == nil {
		return nil, apierr.ErrNotFound
	}

	badges := []profile.Badge{}
	if len(row.Badges) > 0 {
		if err := json.Unmarshal(row.Badges, &badges); err != nil {
			s.log.Warn("profile badges unreadable", "user_id", userID.String(), "error", err)
			badges = []profile.Badge{}
		}
	}
	return &PublicProfile{
		UserID:    row.UserID,
		TrustTier: row.TrustTier,
		Prestige:  row.Prestige,
		Badges:    badges,
		AssetURL:  row.AssetURL,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *profileService) Refresh(dbc dbctx.Context, userID uuid.UUID) (*types.JobRun, bool, error) {
	if userID == uuid.Nil {
		return nil, false, apierr.Validation("missing user_id")
	}
	job, queued, err := s.jobSvc.EnqueueProfileRefreshIfNeeded(dbc, userID, "operator")
	if err != nil {
		return nil, false, apierr.MapDBError("enqueue profile refresh", err)
	}
	return job, queued, nil
}
