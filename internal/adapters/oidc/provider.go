// Package oidc provides the OpenID Connect sign-in adapter used for SSO.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/ports"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultIdentityTTL  = time.Hour
	wellKnownDiscovery  = "/.well-known/openid-configuration"
	selectAccountPrompt = "select_account"
)

// Provider implements ports.AuthProvider with the authorization code flow.
type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	op         *gooidc.Provider
	verifier   *gooidc.IDTokenVerifier
	now        func() time.Time
}

// ProviderConfig configures the IdP client. Scope is space separated.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client
}

func (c ProviderConfig) validate() error {
	var errs []error
	for _, req := range []struct{ value, msg string }{
		{c.ClientID, "client ID is required"},
		{c.ClientSecret, "client secret is required"},
		{c.RedirectURL, "redirect URL is required"},
		{c.DiscoveryURL, "discovery URL is required"},
	} {
		if strings.TrimSpace(req.value) == "" {
			errs = append(errs, errors.New(req.msg))
		}
	}
	return errors.Join(errs...)
}

// DiscoveryDocument is the subset of the discovery document go-oidc consumes.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider performs discovery against the IdP. It fails when the IdP is unreachable.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, client), issuerFromDiscoveryURL(cfg.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
		httpClient: client,
		op:         op,
		verifier:   op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		now:        time.Now,
	}, nil
}

// issuerFromDiscoveryURL accepts either an issuer or its well-known document URL.
func issuerFromDiscoveryURL(raw string) string {
	issuer := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	return strings.TrimSuffix(issuer, wellKnownDiscovery)
}

// Begin builds the authorization URL. State and nonce are fresh high-entropy values.
// The configured redirect_uri is always sent since the IdP matches it exactly.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, nonce := oauth2.GenerateVerifier(), oauth2.GenerateVerifier()
	authURL := p.oauth.AuthCodeURL(state,
		gooidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", selectAccountPrompt),
	)
	return authURL, state, nonce, nil
}

// Exchange redeems the code and resolves the identity from the ID token,
// falling back to the userinfo endpoint for missing subject or email.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	switch {
	case in.Code == "":
		return domainauth.Identity{}, errors.New("authorization code is required")
	case in.State == "":
		return domainauth.Identity{}, errors.New("state is required")
	case in.Nonce == "":
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.oauth.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	var id identityClaims
	if slices.Contains(p.oauth.Scopes, gooidc.ScopeOpenID) {
		if id, err = p.verifyIDToken(ctx, token, in.Nonce); err != nil {
			return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
		}
	}
	if !id.complete() {
		info, uiErr := p.userInfo(ctx, token)
		if uiErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", uiErr)
		}
		id = id.merge(info)
	}
	if id.subject == "" {
		return domainauth.Identity{}, errors.New("identity has no subject")
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = p.now().Add(defaultIdentityTTL)
	}
	return domainauth.Identity{Subject: id.subject, Email: id.email, ExpiresAt: expiresAt}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, nonce string) (identityClaims, error) {
	raw, err := rawIDToken(tok)
	if err != nil {
		return identityClaims{}, err
	}
	idTok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return identityClaims{}, fmt.Errorf("verify id_token: %w", err)
	}
	var c claims
	if err := idTok.Claims(&c); err != nil {
		return identityClaims{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	if c.Nonce != nonce {
		return identityClaims{}, errors.New("invalid nonce")
	}
	return c.identity(), nil
}

func (p *Provider) userInfo(ctx context.Context, tok *oauth2.Token) (identityClaims, error) {
	ui, err := p.op.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return identityClaims{}, fmt.Errorf("fetch user info: %w", err)
	}
	var c claims
	if err := ui.Claims(&c); err != nil {
		return identityClaims{}, fmt.Errorf("decode user info: %w", err)
	}
	return c.identity(), nil
}

// claims covers the standard shape plus the "mail" claim some directory IdPs emit.
type claims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Mail          string `json:"mail"`
	Nonce         string `json:"nonce"`
}

type identityClaims struct {
	subject string
	email   string
}

// identity drops an email the IdP explicitly marks unverified.
func (c claims) identity() identityClaims {
	id := identityClaims{subject: c.Sub}
	if c.EmailVerified == nil || *c.EmailVerified {
		id.email = c.Email
		if id.email == "" {
			id.email = c.Mail
		}
	}
	return id
}

func (id identityClaims) complete() bool { return id.subject != "" && id.email != "" }

// merge fills empty fields from other without overwriting.
func (id identityClaims) merge(other identityClaims) identityClaims {
	if id.subject == "" {
		id.subject = other.subject
	}
	if id.email == "" {
		id.email = other.email
	}
	return id
}

func rawIDToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	if s, ok := tok.Extra("id_token").(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("missing id_token in token response")
}
