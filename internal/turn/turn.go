// Package turn issues short-lived coturn REST credentials for the browser's media engine.
//
//	username   = <unix expiry>:<prefix>:<session>
//	credential = base64(hmac_sha1(secret, username))
package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

var (
	ErrNoSecret      = errors.New("turn: shared secret is required")
	ErrBadTTL        = errors.New("turn: ttl must be positive")
	ErrBadIdentifier = errors.New("turn: prefix and session must be non-empty and contain no ':'")
)

type Credentials struct {
	Username   string    `json:"username"`
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Issuer struct {
	secret   []byte
	ttl      time.Duration
	prefix   string
	turnURLs []string
	stunURLs []string
	now      func() time.Time
}

type Options struct {
	Secret   string
	TTL      time.Duration
	Prefix   string
	TurnURLs []string
	StunURLs []string
	Now      func() time.Time
}

// NewIssuer returns an issuer. Without a secret it only hands out STUN servers.
func NewIssuer(opts Options) (*Issuer, error) {
	if opts.Secret != "" {
		if opts.TTL <= 0 {
			return nil, ErrBadTTL
		}
		if !validIdentifier(opts.Prefix) {
			return nil, ErrBadIdentifier
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Issuer{
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		prefix:   opts.Prefix,
		turnURLs: opts.TurnURLs,
		stunURLs: opts.StunURLs,
		now:      opts.Now,
	}, nil
}

// Generate signs credentials for session, or a random session when empty.
func (i *Issuer) Generate(session string) (Credentials, error) {
	if len(i.secret) == 0 {
		return Credentials{}, ErrNoSecret
	}
	if session == "" {
		session = uuid.NewString()
	}
	if !validIdentifier(session) {
		return Credentials{}, ErrBadIdentifier
	}
	expires := i.now().UTC().Add(i.ttl).Truncate(time.Second)
	username := fmt.Sprintf("%d:%s:%s", expires.Unix(), i.prefix, session)
	return Credentials{
		Username:   username,
		Credential: Sign(i.secret, username),
		ExpiresAt:  expires,
	}, nil
}

// ICEServers returns the STUN servers plus, when a secret is configured, the TURN
// servers carrying fresh credentials.
func (i *Issuer) ICEServers(session string) ([]webrtc.ICEServer, error) {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(i.stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: i.stunURLs})
	}
	if len(i.secret) == 0 || len(i.turnURLs) == 0 {
		return servers, nil
	}
	creds, err := i.Generate(session)
	if err != nil {
		return nil, err
	}
	return append(servers, webrtc.ICEServer{
		URLs:       i.turnURLs,
		Username:   creds.Username,
		Credential: creds.Credential,
	}), nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

func Sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validIdentifier(s string) bool {
	return s != "" && !strings.Contains(s, ":")
}
