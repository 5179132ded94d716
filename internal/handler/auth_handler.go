/*
Package handler provides HTTP handler functions for admin authentication.
*/
package handler

import (
	"crypto/subtle"
	"net/http"

	"cloak/internal/pkg/auth/jwt"
	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/req"
	"cloak/internal/pkg/resp"
)

type TokenInput struct {
	// Name identifies the operator in logs.
	Name string `json:"name"`
	// Secret must match ADMIN_SECRET.
	Secret string `json:"secret"`
}

// HandleIssueToken exchanges the admin secret for a signed admin token.
func HandleIssueToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input TokenInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Name == "" {
			input.Name = "admin"
		}

		if subtle.ConstantTimeCompare([]byte(input.Secret), []byte(deps.Config.AdminSecret)) != 1 {
			logx.Warn("Admin token request rejected: wrong secret.", "name", input.Name)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload := &jwt.Payload{ID: input.Name, Role: jwt.RoleAdmin}
		token, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.AdminTokenExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign admin token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Admin token issued.", "name", input.Name)
		resp.RespondSuccess(w, r, map[string]any{
			"token":     token,
			"expiresIn": int64(jwt.AdminTokenExpiration.Seconds()),
		})
	}
}
