package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/keldara/vaultcraft/internal/auth"
	"github.com/keldara/vaultcraft/internal/srp"
	"github.com/keldara/vaultcraft/internal/storage"
	"github.com/keldara/vaultcraft/internal/totp"
	"github.com/keldara/vaultcraft/internal/vaultdoc"
	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

type registerRequest struct {
	Username string `json:"username"`
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.InvalidRequest, "malformed register body", err))
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Salt == "" || req.Verifier == "" {
		writeError(w, vaulterrors.New(vaulterrors.InvalidRequest, "username, salt and verifier are required"))
		return
	}
	if _, err := hex.DecodeString(req.Salt); err != nil {
		writeError(w, vaulterrors.New(vaulterrors.InvalidRequest, "salt must be hex"))
		return
	}

	if _, err := s.srpStore.GetSrpRecord(r.Context(), username); err == nil {
		writeError(w, vaulterrors.New(vaulterrors.InvalidRequest, "username already registered"))
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "lookup existing registration", err))
		return
	}

	err := s.srpStore.PutSrpRecord(r.Context(), storage.SrpRecord{
		Username: username, Salt: req.Salt, Verifier: req.Verifier,
	})
	if err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "store registration", err))
		return
	}
	s.log.Info().Str("username", username).Msg("srp registration stored")
	writeJSON(w, successResponse{Success: true})
}

type loginInitRequest struct {
	Username string `json:"username"`
	A        string `json:"A"`
}

type loginInitResponse struct {
	Salt string `json:"salt"`
	B    string `json:"B"`
}

func (s *Server) handleLoginInit(w http.ResponseWriter, r *http.Request) {
	var req loginInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.InvalidRequest, "malformed login/init body", err))
		return
	}
	username := strings.TrimSpace(req.Username)
	if !s.rlLoginInitUser.allow(username) {
		tooMany(w, 60)
		return
	}

	rec, err := s.srpStore.GetSrpRecord(r.Context(), username)
	if err != nil {
		// An unregistered username is reported as AuthFail, not NotFound.
		// A registered username still gets salt and B here, so this does
		// not hide which usernames are registered.
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "invalid username or credentials"))
		return
	}

	eph, err := srp.GenerateServerEphemeral(rec.Verifier)
	if err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "generate server ephemeral", err))
		return
	}
	s.putPendingLogin(username, eph)

	writeJSON(w, loginInitResponse{Salt: rec.Salt, B: eph.BHex()})
}

type loginVerifyRequest struct {
	Username string `json:"username"`
	A        string `json:"A"`
	M1       string `json:"M1"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type loginVerifyResponse struct {
	M2    string `json:"M2"`
	Token string `json:"token"`
}

func (s *Server) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.InvalidRequest, "malformed login/verify body", err))
		return
	}
	username := strings.TrimSpace(req.Username)

	eph, ok := s.takePendingLogin(username)
	if !ok {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "no pending login for username"))
		return
	}
	rec, err := s.srpStore.GetSrpRecord(r.Context(), username)
	if err != nil {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "invalid username or credentials"))
		return
	}

	result, err := srp.ServerVerifySession(eph, rec.Verifier, req.A, req.M1)
	if err != nil {
		writeError(w, err)
		return
	}

	if rec.TOTPSecret != "" && !totp.Verify(req.TOTPCode, rec.TOTPSecret, time.Now()) {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "invalid or missing totp code"))
		return
	}

	token, _, err := s.signer.IssueToken(username)
	if err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "issue token", err))
		return
	}
	s.log.Info().Str("username", username).Msg("login succeeded")
	writeJSON(w, loginVerifyResponse{M2: result.M2, Token: token})
}

type passwordUpdateRequest struct {
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

func (s *Server) handlePostPassword(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "missing claims"))
		return
	}
	var req passwordUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.InvalidRequest, "malformed password body", err))
		return
	}
	if req.Salt == "" || req.Verifier == "" {
		writeError(w, vaulterrors.New(vaulterrors.InvalidRequest, "salt and verifier are required"))
		return
	}

	err = s.srpStore.PutSrpRecord(r.Context(), storage.SrpRecord{
		Username: claims.Sub, Salt: req.Salt, Verifier: req.Verifier,
	})
	if err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "store updated registration", err))
		return
	}
	s.log.Info().Str("username", claims.Sub).Msg("srp credentials rotated")
	writeJSON(w, successResponse{Success: true})
}

type totpEnrollResponse struct {
	Secret       string `json:"secret"`
	ProvisionURI string `json:"provision_uri"`
}

// handlePostTOTPEnroll generates and stores a new TOTP secret for the
// authenticated user, overwriting any prior enrollment. A client must
// still prove possession via a correct totp_code on the next
// login/verify call before the secret takes effect in practice, since
// the server cannot force the client to save it.
func (s *Server) handlePostTOTPEnroll(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "missing claims"))
		return
	}
	rec, err := s.srpStore.GetSrpRecord(r.Context(), claims.Sub)
	if err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "load srp record", err))
		return
	}
	secret, err := totp.GenerateSecret()
	if err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "generate totp secret", err))
		return
	}
	rec.TOTPSecret = secret
	if err := s.srpStore.PutSrpRecord(r.Context(), rec); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "store totp secret", err))
		return
	}
	writeJSON(w, totpEnrollResponse{
		Secret:       secret,
		ProvisionURI: totp.ProvisionURI(claims.Sub, s.cfg.JWTIssuer, secret),
	})
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "missing claims"))
		return
	}
	env, err := s.vaultStore.GetVaultEnvelope(r.Context(), claims.Sub)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, vaulterrors.New(vaulterrors.NotFound, "no vault uploaded yet"))
			return
		}
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "load vault envelope", err))
		return
	}
	writeJSON(w, env)
}

type vaultPostResponse struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handlePostVault(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		writeError(w, vaulterrors.New(vaulterrors.AuthFail, "missing claims"))
		return
	}
	var env vaultdoc.SyncEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.InvalidRequest, "malformed vault envelope", err))
		return
	}
	if env.User != claims.Sub {
		writeError(w, vaulterrors.New(vaulterrors.InvalidRequest, "envelope user does not match authenticated user"))
		return
	}

	if err := s.vaultStore.PutVaultEnvelope(r.Context(), env); err != nil {
		writeError(w, vaulterrors.Wrap(vaulterrors.Internal, "store vault envelope", err))
		return
	}
	writeJSON(w, vaultPostResponse{Success: true, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}
