package transcribe

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth2 scope required for Speech-to-Text
var oauthScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
}

// Auth handles Google OAuth2 authentication for the transcription sink
type Auth struct {
	config    *oauth2.Config
	tokenFile string
	token     *oauth2.Token
}

// NewAuth creates an authenticator persisting its token at tokenFile
func NewAuth(clientID, clientSecret, tokenFile string) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       oauthScopes,
			Endpoint:     google.Endpoint,
			// RedirectURL is set dynamically when starting auth
		},
		tokenFile: tokenFile,
	}
}

// IsAuthenticated returns true if we have a usable token
func (a *Auth) IsAuthenticated() bool {
	if a.token != nil && a.token.Valid() {
		return true
	}
	token, err := a.loadToken()
	if err != nil {
		return false
	}
	a.token = token
	return token.Valid() || token.RefreshToken != ""
}

// Authenticate runs the OAuth2 consent flow: opens a browser, waits for
// the loopback callback, exchanges the code and saves the token.
func (a *Auth) Authenticate(ctx context.Context) error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	defer func() { _ = listener.Close() }()

	port := listener.Addr().(*net.TCPAddr).Port
	a.config.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	// PKCE verifier/challenge plus CSRF state
	codeVerifier, err := randomToken(32)
	if err != nil {
		return err
	}
	sum := sha256.Sum256([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(sum[:])
	state, err := randomToken(16)
	if err != nil {
		return err
	}

	authURL := a.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			if r.URL.Query().Get("state") != state {
				errChan <- fmt.Errorf("invalid state parameter")
				http.Error(w, "Invalid state", http.StatusBadRequest)
				return
			}
			if errParam := r.URL.Query().Get("error"); errParam != "" {
				errChan <- fmt.Errorf("authorization error: %s", errParam)
				http.Error(w, errParam, http.StatusBadRequest)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				errChan <- fmt.Errorf("no authorization code received")
				http.Error(w, "No code", http.StatusBadRequest)
				return
			}
			codeChan <- code
			_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>Authorization Successful</title></head>
<body><h1>Authorization Successful</h1>
<p>You can close this window and return to voxkeep.</p>
</body></html>`)
		}),
	}

	go func() {
		if err := server.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	if err := openBrowser(authURL); err != nil {
		return fmt.Errorf("failed to open browser: %w (please manually visit: %s)", err, authURL)
	}

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timeout")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	token, err := a.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	a.token = token
	if err := a.saveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Client returns an HTTP client with valid, auto-refreshing credentials
func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	if a.token == nil {
		token, err := a.loadToken()
		if err != nil {
			return nil, fmt.Errorf("not authenticated: %w", err)
		}
		a.token = token
	}

	tokenSource := a.config.TokenSource(ctx, a.token)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get valid token: %w", err)
	}
	if newToken.AccessToken != a.token.AccessToken {
		a.token = newToken
		if err := a.saveToken(newToken); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
	}

	return oauth2.NewClient(ctx, tokenSource), nil
}

// Logout removes stored credentials
func (a *Auth) Logout() error {
	a.token = nil
	err := os.Remove(a.tokenFile)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *Auth) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (a *Auth) saveToken(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.tokenFile, data, 0600)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// openBrowser opens the default browser to the given URL
func openBrowser(urlStr string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", urlStr)
	case "darwin":
		cmd = exec.Command("open", urlStr)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", urlStr)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
