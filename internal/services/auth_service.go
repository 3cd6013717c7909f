package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/ctxutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

const tokenIssuer = "rewardcore"

// TokenGrant is a successful client-credentials exchange.
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// CreatedAccount carries the plaintext secret exactly once; only its bcrypt
// hash is stored.
type CreatedAccount struct {
	Account *types.ServiceAccount `json:"account"`
	Secret  string                `json:"secret"`
}

// AuthService authenticates machine callers. Tokens are short-lived and
// stateless: disabling an account stops new grants immediately and
// outstanding tokens die at their expiry.
type AuthService interface {
	IssueToken(dbc dbctx.Context, keyID, secret string) (*TokenGrant, error)
	Verify(ctx context.Context, tokenString string) (*ctxutil.Principal, error)

	CreateAccount(dbc dbctx.Context, name string, scopes []string) (*CreatedAccount, error)
	ListAccounts(dbc dbctx.Context, limit int) ([]*types.ServiceAccount, error)
	SetAccountDisabled(dbc dbctx.Context, id uuid.UUID, disabled bool) error
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	accounts     repos.ServiceAccountRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, accounts repos.ServiceAccountRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	return &authService{
		db:           db,
		log:          baseLog.With("service", "AuthService"),
		accounts:     accounts,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

type serviceClaims struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

func (as *authService) IssueToken(dbc dbctx.Context, keyID, secret string) (*TokenGrant, error) {
	if keyID == "" || secret == "" {
		return nil, apierr.Validation("missing key_id or secret")
	}
	account, err := as.accounts.GetByKeyID(dbc, keyID)
	if err != nil {
		return nil, apierr.MapDBError("load service account", err)
	}
	// Unknown key, disabled account, and bad secret all answer the same
	// way.
	if account == nil || account.Disabled {
		return nil, apierr.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(secret)) != nil {
		return nil, apierr.ErrUnauthorized
	}

	scopes := decodeScopes(account.Scopes)
	now := time.Now()
	claims := serviceClaims{
		Name:   account.Name,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return nil, err
	}

	if err := as.accounts.TouchLastUsed(dbc, account.ID); err != nil {
		as.log.Warn("touch last_used failed", "key_id", keyID, "error", err)
	}
	return &TokenGrant{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(as.accessTTL.Seconds()),
	}, nil
}

func (as *authService) Verify(ctx context.Context, tokenString string) (*ctxutil.Principal, error) {
	if tokenString == "" {
		return nil, apierr.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &serviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, apierr.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*serviceClaims)
	if !ok || !parsed.Valid {
		return nil, apierr.ErrUnauthorized
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apierr.ErrUnauthorized
	}
	return &ctxutil.Principal{
		AccountID: accountID,
		Name:      claims.Name,
		Scopes:    claims.Scopes,
	}, nil
}

func (as *authService) CreateAccount(dbc dbctx.Context, name string, scopes []string) (*CreatedAccount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.Validation("missing account name")
	}
	if len(scopes) == 0 {
		return nil, apierr.Validation("missing scopes")
	}
	for _, scope := range scopes {
		switch scope {
		case types.ScopeIngest, types.ScopeDecide, types.ScopeProfile, types.ScopeAdmin:
		default:
			return nil, apierr.Validationf("unknown scope %q", scope)
		}
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, err
	}
	secret := hex.EncodeToString(secretBytes)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	scopesJSON, err := json.Marshal(scopes)
	if err != nil {
		return nil, err
	}

	row := &types.ServiceAccount{
		ID:         uuid.New(),
		Name:       name,
		KeyID:      "svc_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		SecretHash: string(hash),
		Scopes:     datatypes.JSON(scopesJSON),
	}
	created, err := as.accounts.Create(dbc, row)
	if err != nil {
		return nil, apierr.MapDBError("create service account", err)
	}
	as.log.Info("service account created", "name", name, "key_id", created.KeyID, "scopes", strings.Join(scopes, ","))
	return &CreatedAccount{Account: created, Secret: secret}, nil
}

func (as *authService) ListAccounts(dbc dbctx.Context, limit int) ([]*types.ServiceAccount, error) {
	out, err := as.accounts.List(dbc, limit)
	if err != nil {
		return nil, apierr.MapDBError("list service accounts", err)
	}
	return out, nil
}

func (as *authService) SetAccountDisabled(dbc dbctx.Context, id uuid.UUID, disabled bool) error {
	if id == uuid.Nil {
		return apierr.Validation("missing account id")
	}
	if err := as.accounts.SetDisabled(dbc, id, disabled); err != nil {
		return apierr.MapDBError("set account disabled", err)
	}
	return nil
}

func decodeScopes(raw datatypes.JSON) []string {
	var scopes []string
	if len(raw) == 0 {
		return scopes
	}
	if err := json.Unmarshal(raw, &scopes); err != nil {
		return nil
	}
	return scopes
}
