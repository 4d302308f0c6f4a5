package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/api/validators"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// AuthLogin exchanges a contact number and password for a token pair.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return issueTokens(logg, http.StatusOK, svc.Login)
}

// AuthRegister opens a customer or farmer account and signs the new user in.
func AuthRegister(reg auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	if reg == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return issueTokens(logg, http.StatusCreated, reg.Register)
}

// issueTokens decodes a T, runs issue and returns the token pair in the body
// with the access token mirrored in the token header.
func issueTokens[T any](logg *logger.Logger, status int, issue func(context.Context, T) (*auth.LoginResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body T
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := issue(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(middleware.TokenHeader, result.AccessToken)
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccessStatus(w, status, result)
	}
}

func unavailable(logg *logger.Logger, err error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, err)
	}
}
