package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"backtomatic/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultConsentTimeout = 2 * time.Minute

type configParser func(secret []byte) (*oauth2.Config, error)

// Provider obtains OAuth credentials for one cloud account: it reuses the
// persisted token, refreshes it when it has expired, and falls back to the
// installed-app consent flow when neither works.
type Provider struct {
	name         string
	store        Store
	parse        configParser
	authParams   []oauth2.AuthCodeOption
	listenAddr   string
	callbackPath string

	consent        Consent
	selectSecret   SecretSelector
	consentTimeout time.Duration

	mu sync.Mutex
}

type Option func(*Provider)

func WithConsent(c Consent) Option {
	return func(p *Provider) { p.consent = c }
}

func WithSecretSelector(s SecretSelector) Option {
	return func(p *Provider) { p.selectSecret = s }
}

func WithConsentTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.consentTimeout = d
		}
	}
}

func WithListenAddr(addr string) Option {
	return func(p *Provider) { p.listenAddr = addr }
}

func newProvider(name string, store Store, parse configParser, opts []Option) *Provider {
	p := &Provider{
		name:           name,
		store:          store,
		parse:          parse,
		listenAddr:     "127.0.0.1:0",
		callbackPath:   "/",
		consentTimeout: defaultConsentTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Store() Store {
	return p.store
}

// Client returns an HTTP client that authorizes every request.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	return oauth2.NewClient(ctx, ts), nil
}

// TokenSource needs the client secret only to refresh or to run consent; a
// stored token that is still valid is handed out without it.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, tokenErr := p.store.LoadToken(p.name)
	if tokenErr == nil && token.Valid() {
		return oauth2.ReuseTokenSource(token, &deferredSource{p: p, ctx: ctx, token: token}), nil
	}

	cfg, err := p.config()
	if err != nil {
		return nil, err
	}

	if tokenErr == nil {
		if ts, ok := p.reuse(ctx, cfg, token); ok {
			return ts, nil
		}
	} else {
		logger.Log.Debug("no stored token",
			zap.String("provider", p.name),
			zap.Error(tokenErr))
	}

	token, err = p.runConsent(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return p.persisting(ctx, cfg, token), nil
}

// deferredSource loads the client secret the first time the stored token
// has to be refreshed.
type deferredSource struct {
	p     *Provider
	ctx   context.Context
	token *oauth2.Token

	mu  sync.Mutex
	src oauth2.TokenSource
}

func (d *deferredSource) Token() (*oauth2.Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.src == nil {
		d.p.mu.Lock()
		cfg, err := d.p.config()
		d.p.mu.Unlock()
		if err != nil {
			return nil, err
		}

		d.src = d.p.persisting(d.ctx, cfg, d.token)
	}

	return d.src.Token()
}

// Authorize forces the consent flow and replaces any stored token.
func (p *Provider) Authorize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg, err := p.config()
	if err != nil {
		return err
	}

	_, err = p.runConsent(ctx, cfg)
	return err
}

func (p *Provider) config() (*oauth2.Config, error) {
	secret, err := p.store.LoadSecret(p.name)
	if err != nil {
		if p.selectSecret == nil {
			return nil, authError("client secret missing", err)
		}

		path, ok := p.selectSecret()
		if !ok {
			return nil, authError("no client secret selected", nil)
		}

		if _, err := p.store.ImportSecret(p.name, path); err != nil {
			return nil, authError("client secret import failed", err)
		}

		if secret, err = p.store.LoadSecret(p.name); err != nil {
			return nil, authError("client secret missing", err)
		}
	}

	cfg, err := p.parse(secret)
	if err != nil {
		return nil, authError("invalid client secret", err)
	}

	return cfg, nil
}

func (p *Provider) reuse(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (oauth2.TokenSource, bool) {
	if token.Valid() {
		return p.persisting(ctx, cfg, token), true
	}

	if token.RefreshToken == "" {
		return nil, false
	}

	fresh, err := cfg.TokenSource(ctx, token).Token()
	if err != nil {
		logger.Log.Warn("token refresh failed, consent required",
			zap.String("provider", p.name),
			zap.Error(err))
		return nil, false
	}

	if err := p.store.SaveToken(p.name, fresh); err != nil {
		logger.Log.Warn("failed to save refreshed token",
			zap.String("provider", p.name),
			zap.Error(err))
	}

	return p.persisting(ctx, cfg, fresh), true
}

func (p *Provider) persisting(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(token, &savingSource{
		base:     cfg.TokenSource(ctx, token),
		provider: p.name,
		store:    p.store,
		last:     token.AccessToken,
	})
}

// savingSource writes a token back to the store whenever a refresh hands out
// a new access token.
type savingSource struct {
	mu       sync.Mutex
	base     oauth2.TokenSource
	provider string
	store    Store
	last     string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.store.SaveToken(s.provider, token); err != nil {
			logger.Log.Warn("failed to save refreshed token",
				zap.String("provider", s.provider),
				zap.Error(err))
		}
	}

	return token, nil
}

type callbackResult struct {
	code string
	err  error
}

func (p *Provider) runConsent(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	if p.consent == nil {
		return nil, authError("no usable token and interactive consent is unavailable", nil)
	}

	ln, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return nil, authError("failed to start consent callback listener", err)
	}

	cfg := *base
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), p.callbackPath)

	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(p.callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var res callbackResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent declined: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("callback carried no code")
		default:
			res.code = q.Get("code")
		}

		select {
		case resultCh <- res:
		default:
		}

		w.Header().Set("Content-Type", "text/html")
		if res.err != nil {
			_, _ = fmt.Fprintln(w, "<h2>Authentication failed. You can close this window.</h2>")
			return
		}
		_, _ = fmt.Fprintln(w, "<h2>Authentication complete! You can close this window and return to BackTomatic.</h2>")
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	opts := append([]oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	}, p.authParams...)

	authURL := cfg.AuthCodeURL(state, opts...)
	if err := p.consent.Open(authURL); err != nil {
		return nil, authError("failed to open consent page", err)
	}

	timer := time.NewTimer(p.consentTimeout)
	defer timer.Stop()

	var res callbackResult
	select {
	case res = <-resultCh:
	case <-timer.C:
		return nil, authError("authorization timed out", nil)
	case <-ctx.Done():
		return nil, authError("authorization aborted", ctx.Err())
	}

	if res.err != nil {
		return nil, authError("consent failed", res.err)
	}

	token, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, authError("failed to exchange token", err)
	}

	if err := p.store.SaveToken(p.name, token); err != nil {
		return nil, err
	}

	logger.Log.Info("authorized",
		zap.String("provider", p.name),
		zap.String("token", p.store.TokenPath(p.name)))

	return token, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return hex.EncodeToString(b), nil
}
