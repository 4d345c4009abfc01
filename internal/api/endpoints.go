package api

import (
	"context"
	"net/http"

	"github.com/roach88/posscan/internal/catalog"
)

var _ catalog.Source = (*Client)(nil)

// User is the logged-in account.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type productsResponse struct {
	envelope
	Data *struct {
		Products []catalog.Product `json:"products"`
	} `json:"data"`
}

// Products fetches the full product list.
func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	const path = "/products"
	var resp productsResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Data == nil {
		return nil, errUnsuccessful(http.MethodGet, path, resp.envelope)
	}
	if resp.Data.Products == nil {
		return []catalog.Product{}, nil
	}
	return resp.Data.Products, nil
}

type categoriesResponse struct {
	envelope
	Data *struct {
		Categories []catalog.Category `json:"categories"`
	} `json:"data"`
}

// Categories fetches the category tree.
func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	const path = "/categories?tree=true"
	var resp categoriesResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Data == nil {
		return nil, errUnsuccessful(http.MethodGet, path, resp.envelope)
	}
	return resp.Data.Categories, nil
}

type loginResponse struct {
	envelope
	Data *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		User         User   `json:"user"`
	} `json:"data"`
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	const path = "/auth/login"
	var resp loginResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.DoAnonymous(ctx, http.MethodPost, path, body, &resp); err != nil {
		return User{}, err
	}
	if resp.Status != "success" || resp.Data == nil {
		return User{}, errUnsuccessful(http.MethodPost, path, resp.envelope)
	}
	if err := c.SetTokens(ctx, resp.Data.AccessToken, resp.Data.RefreshToken); err != nil {
		return User{}, err
	}
	c.logger.Info("logged in", "user", resp.Data.User.Username)
	return resp.Data.User, nil
}

type meResponse struct {
	envelope
	Data *struct {
		User User `json:"user"`
	} `json:"data"`
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (User, error) {
	const path = "/auth/me"
	var resp meResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return User{}, err
	}
	if resp.Status != "success" || resp.Data == nil {
		return User{}, errUnsuccessful(http.MethodGet, path, resp.envelope)
	}
	return resp.Data.User, nil
}

// Logout tells the backend to drop the refresh token, then forgets the
// tokens locally even if the backend call failed.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		c.logger.Debug("backend logout failed", "error", err)
	}
	c.mu.Lock()
	c.access, c.refresh, c.loaded = "", "", true
	c.mu.Unlock()
	return c.store.ClearTokens(ctx)
}
