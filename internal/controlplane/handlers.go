package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/internal/director"
	"github.com/MultiDragon/libpuns/internal/logger"
	"github.com/MultiDragon/libpuns/internal/serverdirector"
	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

var bodyValidate = validator.New()

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return bodyValidate.Struct(dst)
}

// healthHandler serves unauthenticated liveness/readiness probes.
type healthHandler struct {
	dir *serverdirector.Director
}

func (h *healthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *healthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"signature": h.dir.Signature(),
	})
}

// authHandler issues bearer tokens for the single configured admin
// principal. There is no user store: libpuns's control plane has
// exactly one operator-managed identity, config.AdminConfig.
type authHandler struct {
	admin  config.AdminConfig
	jwtSvc *JWTService
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Username != h.admin.Username {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, expiresAt, err := h.jwtSvc.Issue(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// runtimeHandler exposes read-only introspection of the live director:
// zone occupancy, connected accounts, and the frozen registry
// signature every connected client must match.
type runtimeHandler struct {
	dir *serverdirector.Director
}

func (h *runtimeHandler) Zones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dir.ZoneOccupancy())
}

func (h *runtimeHandler) ConnectedAccounts(w http.ResponseWriter, r *http.Request) {
	oids := h.dir.ConnectedAccounts()
	out := make([]string, len(oids))
	for i, oid := range oids {
		out[i] = oid.String()
	}
	writeJSON(w, http.StatusOK, out)
}

// adminKickReason is the reason code attached to every control-plane
// initiated kick. The wire protocol's KickReason enum (spec's §6) is a
// closed set of protocol-violation causes with no "administrator
// disconnected you" value; PermissionDenied is the closest fit for an
// operator-revoked connection and keeps Kick from widening a
// protocol-level enum for an HTTP-only caller.
const adminKickReason = director.PermissionDenied

func (h *runtimeHandler) Kick(w http.ResponseWriter, r *http.Request) {
	oidParam := chi.URLParam(r, "oid")
	oid, err := wire.ParseOID(oidParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dir.Kick(oid, adminKickReason); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		logger.Info("admin kicked connection", "oid", oid.String(), "admin", claims.Username)
	}
	w.WriteHeader(http.StatusNoContent)
}

// accountHandler fronts internal/database.Store for admin account
// management. It requires a persistent (GORM-backed) store - the
// dummy, in-memory store used for local demos has no write path.
type accountHandler struct {
	store *database.Store
}

var errNoAccountStore = errors.New("controlplane: account management requires a persistent database driver")

type createAccountRequest struct {
	Login string `json:"login" validate:"required"`
	Token string `json:"token" validate:"required,min=6"`
}

type accountResponse struct {
	Login     string `json:"login"`
	ObjectID  string `json:"object_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (h *accountHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoAccountStore.Error())
		return
	}

	var req createAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	oid, err := h.store.CreateAccount(r.Context(), req.Login, req.Token)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{Login: req.Login, ObjectID: oid.String()})
}

func (h *accountHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoAccountStore.Error())
		return
	}

	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = accountResponse{
			Login:     a.Login,
			ObjectID:  a.OID.String(),
			CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
