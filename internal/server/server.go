// Package server implements vaultd's REST surface: SRP-6a registration
// and login, and the zero-knowledge vault sync endpoints, over
// github.com/go-chi/chi/v5, grounded on the teacher's
// Chehabb2003-Project-Manger server package (per-resource mutex
// discipline, Ed25519 JWT bearer tokens, multi-key rate limiting)
// adapted from password+session auth to SRP+sync.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/keldara/vaultcraft/internal/auth"
	"github.com/keldara/vaultcraft/internal/logging"
	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/storage"
)

// pendingLogin holds one in-flight SRP login exchange between
// /login/init and /login/verify, keyed by username.
type pendingLogin struct {
	eph     *srp.ServerEphemeral
	expires time.Time
}

type Server struct {
	cfg    Config
	router chi.Router
	log    *logging.Logger

	signer *auth.JWTSigner

	srpStore   storage.SrpStore
	vaultStore storage.VaultStore

	mu       sync.Mutex
	sessions map[string]*pendingLogin

	rlLoginInitIP   *multiLimiter
	rlLoginInitUser *multiLimiter
	rlLoginVerify   *multiLimiter
	rlRegisterIP    *multiLimiter
	rlPasswordUser  *multiLimiter
}

// New builds a Server with the storage backend named by cfg.StorageBackend.
func New(ctx context.Context, cfg Config, log *logging.Logger) (*Server, error) {
	cfg.setDefaults()
	if log == nil {
		log = logging.Nop()
	}

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	var srpStore storage.SrpStore
	var vaultStore storage.VaultStore
	switch cfg.StorageBackend {
	case "mongo":
		ss, err := storage.NewMongoSrpStore(ctx, cfg.MongoURI, cfg.MongoDB, "srp_records")
		if err != nil {
			return nil, err
		}
		vs, err := storage.NewMongoVaultStore(ctx, cfg.MongoURI, cfg.MongoDB, "vault_envelopes")
		if err != nil {
			return nil, err
		}
		srpStore, vaultStore = ss, vs
	default:
		ss, err := storage.NewFileSrpStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		vs, err := storage.NewFileVaultStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		srpStore, vaultStore = ss, vs
	}

	perWindow := func(n int, window time.Duration) float64 { return float64(n) / window.Seconds() }

	s := &Server{
		cfg:        cfg,
		log:        log,
		signer:     auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		srpStore:   srpStore,
		vaultStore: vaultStore,
		sessions:   map[string]*pendingLogin{},

		rlLoginInitIP:   newMultiLimiter(rate.Limit(perWindow(20, time.Minute)), 20, time.Hour),
		rlLoginInitUser: newMultiLimiter(rate.Limit(perWindow(10, time.Minute)), 10, time.Hour),
		rlLoginVerify:   newMultiLimiter(rate.Limit(perWindow(10, time.Minute)), 10, time.Hour),
		rlRegisterIP:    newMultiLimiter(rate.Limit(perWindow(5, time.Minute)), 5, time.Hour),
		rlPasswordUser:  newMultiLimiter(rate.Limit(perWindow(5, 15*time.Minute)), 5, time.Hour),
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() chi.Router { return s.router }

// putPendingLogin stashes the server's ephemeral for a later /login/verify
// call and evicts stale entries so a login/init flood can't grow the map
// without bound.
func (s *Server) putPendingLogin(username string, eph *srp.ServerEphemeral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.sessions[username] = &pendingLogin{eph: eph, expires: now.Add(2 * time.Minute)}
	for u, p := range s.sessions {
		if now.After(p.expires) {
			delete(s.sessions, u)
		}
	}
}

func (s *Server) takePendingLogin(username string) (*srp.ServerEphemeral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.sessions[username]
	if !ok {
		return nil, false
	}
	delete(s.sessions, username)
	if time.Now().After(p.expires) {
		return nil, false
	}
	return p.eph, true
}
