// Copyright (c) 2026 Motorparc. All rights reserved.

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motorparc/motorparc/internal/platform/apperr"
	"github.com/motorparc/motorparc/internal/platform/ctxutil"
	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Session extracts the authenticated session payload from the request context.

Returns nil if the request is not authenticated.
*/
func Session(request *http.Request) *sec.SessionPayload {
	return ctxutil.GetSession(request.Context())
}

/*
RequiredSession ensures the request is authenticated and returns the session payload.

Returns:
  - *sec.SessionPayload: The authenticated session
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredSession(request *http.Request) (*sec.SessionPayload, error) {

	// Get the session payload
	session := ctxutil.GetSession(request.Context())

	// If the user is not authenticated, return an error
	if session == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return session, nil
}

/*
RequiredUsername returns the username of the currently logged-in user.

Returns:
  - string: Case-preserved username from the session payload
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredUsername(request *http.Request) (string, error) {

	// Get the session payload
	session, err := RequiredSession(request)

	// If the user is not authenticated, return an error
	if err != nil {
		return "", err
	}

	return session.Username, nil
}
