package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cipher-systems/report-portal/internal/config"
	"github.com/cipher-systems/report-portal/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrOAuthExchange = errors.New("discord authorization failed")
)

const discordUserInfoURL = "https://discord.com/api/users/@me"

// DiscordUserInfo is the subset of the /users/@me response we persist.
type DiscordUserInfo struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
}

type AuthService struct {
	db    *gorm.DB
	cfg   *config.Config
	oauth *oauth2.Config
	staff map[string]bool

	// userInfoURL is swappable in tests.
	userInfoURL string
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	staff := make(map[string]bool)
	for _, id := range cfg.StaffIDs() {
		staff[id] = true
	}

	return &AuthService{
		db:  db,
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     endpoints.Discord,
		},
		staff:       staff,
		userInfoURL: discordUserInfoURL,
	}
}

// AuthCodeURL returns the Discord authorize URL for the given CSRF state.
func (s *AuthService) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// SignIn exchanges the OAuth code, refreshes the user's profile and staff
// flag, and mints a signed session token. Staff membership is decided here,
// once per sign-in, from the configured allow-list.
func (s *AuthService) SignIn(ctx context.Context, code string) (*models.User, string, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	user, err := s.upsertUser(info)
	if err != nil {
		return nil, "", err
	}

	sessionToken, err := s.generateSessionToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return user, sessionToken, nil
}

// UserByID loads the full persisted profile, for /auth/me.
func (s *AuthService) UserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*DiscordUserInfo, error) {
	resp, err := s.oauth.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discord profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord profile request returned %d", resp.StatusCode)
	}

	var info DiscordUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode discord profile: %w", err)
	}
	if info.ID == "" {
		return nil, errors.New("discord profile missing id")
	}
	return &info, nil
}

func (s *AuthService) upsertUser(info *DiscordUserInfo) (*models.User, error) {
	username := info.Username
	if username == "" {
		username = info.GlobalName
	}
	if username == "" {
		username = "Unknown"
	}
	isStaff := s.staff[info.ID]

	var user models.User
	err := s.db.Where("discord_id = ?", info.ID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"username":      username,
			"discriminator": info.Discriminator,
			"avatar":        info.Avatar,
			"email":         info.Email,
			"is_staff":      isStaff,
		}
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to refresh user profile: %w", err)
		}
		user.Username = username
		user.Discriminator = info.Discriminator
		user.Avatar = info.Avatar
		user.Email = info.Email
		user.IsStaff = isStaff
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			ID:            uuid.New(),
			DiscordID:     info.ID,
			Username:      username,
			Discriminator: info.Discriminator,
			Avatar:        info.Avatar,
			Email:         info.Email,
			IsStaff:       isStaff,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &user, nil
}

func (s *AuthService) generateSessionToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":        user.ID.String(),
		"discord_id": user.DiscordID,
		"username":   user.Username,
		"is_staff":   user.IsStaff,
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(s.cfg.SessionExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
