package sourcehost

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// appJWTLifetime is kept well under GitHub's 10 minute ceiling to absorb
// clock skew between the hub and GitHub's servers.
const appJWTLifetime = 9 * time.Minute

// AppCredentials identifies a GitHub App and the installation it acts as.
type AppCredentials struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPEM  []byte
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("sourcehost: no PEM block in private key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyIface, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("sourcehost: parse private key: %w", err)
	}
	key, ok := keyIface.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("sourcehost: private key is not RSA")
	}
	return key, nil
}

// appJWT mints a short-lived JWT identifying the App itself, used only to
// mint installation tokens.
func appJWT(appID int64, key *rsa.PrivateKey) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(appJWTLifetime).Unix(),
		"iss": appID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// installationToken exchanges the App's JWT for a short-lived installation
// access token scoped to creds.InstallationID.
func installationToken(ctx context.Context, creds AppCredentials) (string, time.Time, error) {
	key, err := parsePrivateKey(creds.PrivateKeyPEM)
	if err != nil {
		return "", time.Time{}, err
	}
	jwtToken, err := appJWT(creds.AppID, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sourcehost: mint app jwt: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: jwtToken})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	tok, _, err := client.Apps.CreateInstallationToken(ctx, creds.InstallationID, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sourcehost: create installation token: %w", err)
	}
	return tok.GetToken(), tok.GetExpiresAt().Time, nil
}

// installationTokenSource is an oauth2.TokenSource that mints a fresh
// installation token on every Token call. NewAppHost wraps it in
// oauth2.ReuseTokenSource, which reuses each token until shortly before it
// expires, so a long-lived Client never needs manual token refresh.
type installationTokenSource struct {
	ctx   context.Context
	creds AppCredentials
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	token, expiry, err := installationToken(s.ctx, s.creds)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, Expiry: expiry}, nil
}
