package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	EntryUser     = "DetailUser"
	EntryRemember = "RememberMe"
)

const (
	RoleCustomer = 0
	RoleAdmin    = 1
)

// User is the authenticated identity behind a browser session.
type User struct {
	UserID string
	Role   int
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// payload is the stored form. Older entries carry userId as a number.
type payload struct {
	UserID flexID `json:"userId"`
	Role   int    `json:"role"`
	Expiry int64  `json:"expiry"` // epoch millis
}

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// Credentials are the remembered login fields; no password is kept.
type Credentials struct {
	Email      string `json:"email"`
	RememberMe bool   `json:"rememberMe"`
}

type Resolver struct {
	Storage Storage
	Codec   Codec
	Log     *zap.Logger
	Now     func() time.Time

	RememberTTL time.Duration
}

func NewResolver(st Storage, codec Codec, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Storage:     st,
		Codec:       codec,
		Log:         log,
		Now:         time.Now,
		RememberTTL: 30 * 24 * time.Hour,
	}
}

// CurrentUser returns the session's user, or nil for a guest. Expired entries are
// removed. Storage and decode failures are treated as guest.
func (r *Resolver) CurrentUser(ctx context.Context, sid string) *User {
	if sid == "" {
		return nil
	}
	raw, ok, err := r.Storage.Get(ctx, sid, EntryUser)
	if err != nil {
		r.Log.Warn("session read failed", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	plain, err := r.Codec.Open(raw)
	if err != nil {
		r.Log.Debug("session entry undecodable", zap.Error(err))
		return nil
	}
	var p payload
	if err := json.Unmarshal(plain, &p); err != nil || p.UserID == "" {
		r.Log.Debug("session entry malformed", zap.Error(err))
		return nil
	}
	if r.Now().UnixMilli() >= p.Expiry {
		if err := r.Storage.Delete(ctx, sid, EntryUser); err != nil {
			r.Log.Warn("expired session delete failed", zap.Error(err))
		}
		return nil
	}
	return &User{UserID: string(p.UserID), Role: p.Role}
}

// Store seals the user with an expiry of now+ttl and writes it under the session.
func (r *Resolver) Store(ctx context.Context, sid string, u User, ttl time.Duration) error {
	if sid == "" || u.UserID == "" {
		return errors.New("session: sid and user id required")
	}
	exp := r.Now().Add(ttl)
	b, err := json.Marshal(payload{UserID: flexID(u.UserID), Role: u.Role, Expiry: exp.UnixMilli()})
	if err != nil {
		return err
	}
	sealed, err := r.Codec.Seal(b)
	if err != nil {
		return err
	}
	return r.Storage.Set(ctx, sid, EntryUser, sealed, ttl)
}

func (r *Resolver) Clear(ctx context.Context, sid string) error {
	return r.Storage.Delete(ctx, sid, EntryUser)
}

// Remember stores the login email when rememberMe is set and forgets it otherwise.
func (r *Resolver) Remember(ctx context.Context, sid string, c Credentials) error {
	if !c.RememberMe {
		return r.Storage.Delete(ctx, sid, EntryRemember)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	sealed, err := r.Codec.Seal(b)
	if err != nil {
		return err
	}
	return r.Storage.Set(ctx, sid, EntryRemember, sealed, r.RememberTTL)
}

func (r *Resolver) Remembered(ctx context.Context, sid string) (Credentials, bool) {
	raw, ok, err := r.Storage.Get(ctx, sid, EntryRemember)
	if err != nil || !ok {
		return Credentials{}, false
	}
	plain, err := r.Codec.Open(raw)
	if err != nil {
		return Credentials{}, false
	}
	var c Credentials
	if err := json.Unmarshal(plain, &c); err != nil || !c.RememberMe {
		return Credentials{}, false
	}
	return c, true
}
