package service

import (
	"context"
	"errors"
	"time"

	"github.com/quokkahq/parlor/internal/parlor/domain"
	"github.com/quokkahq/parlor/internal/parlor/store"
)

// Session is the resolved state of a request's credentials. Anonymous
// requests have no Session at all; an Authenticated session may
// additionally be Fresh when the interactive login is recent enough for
// step-up actions.
type Session struct {
	UserID     string
	IssuedAt   time.Time
	Fresh      bool // minted by an interactive login (not a remember-me restore)
	Remembered bool // restored from the long-lived credential
}

// SessionManager tracks the current actor for a request lifetime using
// stateless signed credentials: a short-lived session token and an
// optional long-lived remember-me token, both signed and verified the same
// way as out-of-band tokens.
type SessionManager struct {
	Tokens *TokenService
	Store  store.Store

	SessionTTL  time.Duration
	RememberTTL time.Duration
	// FreshFor bounds how long after an interactive login a session still
	// satisfies re-authentication-gated actions.
	FreshFor time.Duration
}

// IssueSession mints the short-lived credential after a successful
// interactive login (credential or broker).
func (s *SessionManager) IssueSession(user domain.User) (string, error) {
	return s.Tokens.issue(user.ID, PurposeSession, s.SessionTTL, "", true)
}

// IssueRemember mints the long-lived remember-me credential.
func (s *SessionManager) IssueRemember(user domain.User) (string, error) {
	return s.Tokens.issue(user.ID, PurposeRemember, s.RememberTTL, "", false)
}

// Resolve turns the credentials presented by a request into an actor. A
// valid session token wins; an expired or absent one falls back to the
// remember-me token, which restores Authenticated but never Fresh. When
// neither verifies the request stays anonymous with a Guest actor and a
// nil session.
//
// Resolution touches the user's last-activity timestamp.
func (s *SessionManager) Resolve(ctx context.Context, sessionToken, rememberToken string) (domain.Actor, *Session, error) {
	if sessionToken != "" {
		claims, err := s.Tokens.Verify(sessionToken, PurposeSession)
		if err == nil {
			return s.load(ctx, Session{
				UserID:   claims.Subject,
				IssuedAt: claims.IssuedAt.Time,
				Fresh:    claims.Fresh,
			})
		}
	}

	if rememberToken != "" {
		claims, err := s.Tokens.Verify(rememberToken, PurposeRemember)
		if err == nil {
			return s.load(ctx, Session{
				UserID:     claims.Subject,
				IssuedAt:   claims.IssuedAt.Time,
				Remembered: true,
			})
		}
	}

	return domain.Guest{}, nil, nil
}

func (s *SessionManager) load(ctx context.Context, sess Session) (domain.Actor, *Session, error) {
	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Account deleted since the credential was minted.
			return domain.Guest{}, nil, nil
		}
		return domain.Guest{}, nil, err
	}

	if user.Role.Name == domain.RoleLocked {
		return domain.Guest{}, nil, nil
	}

	_ = s.Store.Users().TouchLastSeen(ctx, user.ID)
	return user, &sess, nil
}

// RequireFresh gates re-authentication-required actions. A session is
// fresh while its interactive login is younger than FreshFor; remember-me
// restores are never fresh.
func (s *SessionManager) RequireFresh(sess *Session) error {
	if sess == nil {
		return ErrNotAuthenticated
	}
	if !sess.Fresh || sess.Remembered {
		return ErrReauthenticationRequired
	}
	if s.FreshFor > 0 && time.Since(sess.IssuedAt) > s.FreshFor {
		return ErrReauthenticationRequired
	}
	return nil
}
