package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/votehall/apiserver/config"
	"github.com/votehall/apiserver/internal/store"
	"github.com/votehall/apiserver/types"
)

// UserProvisioner is the account store the OAuth strategy provisions into.
type UserProvisioner interface {
	UserSource
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// OAuthAuthenticator implements the delegated login strategy: it exchanges
// an authorization code, fetches the provider's userinfo, and maps it onto a
// local account, auto-provisioning a member on first login.
type OAuthAuthenticator struct {
	oauth       *oauth2.Config
	userInfoURL string
	provider    string
	users       UserProvisioner
	httpClient  *http.Client
}

func NewOAuthAuthenticator(cfg config.OAuthConfig, users UserProvisioner) (*OAuthAuthenticator, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("oauth client id and secret are required")
	}
	if strings.TrimSpace(cfg.UserInfoURL) == "" {
		return nil, errors.New("oauth userinfo url is required")
	}

	return &OAuthAuthenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: []string{"openid", "email", "profile"},
		},
		userInfoURL: cfg.UserInfoURL,
		provider:    "google",
		users:       users,
	}, nil
}

type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Login exchanges the authorization code and returns the local account for
// the provider identity, creating a member account on first login. A
// duplicate-key race during provisioning (two callbacks for the same new
// email) is treated as already-provisioned.
func (a *OAuthAuthenticator) Login(ctx context.Context, code string) (types.User, error) {
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return types.User{}, fmt.Errorf("oauth exchange failed: %w", err)
	}

	info, err := a.fetchUserInfo(ctx, token)
	if err != nil {
		return types.User{}, err
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return types.User{}, errors.New("oauth provider returned no email")
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	created, err := a.users.Create(ctx, types.User{
		Email:    email,
		FullName: info.Name,
		Role:     types.RoleMember,
		Provider: a.provider,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return a.users.GetByEmail(ctx, email)
		}
		return types.User{}, err
	}
	return created, nil
}

func (a *OAuthAuthenticator) fetchUserInfo(ctx context.Context, token *oauth2.Token) (userInfo, error) {
	client := a.httpClient
	if client == nil {
		client = a.oauth.Client(ctx, token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return userInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return userInfo{}, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("invalid userinfo response: %w", err)
	}
	return info, nil
}
