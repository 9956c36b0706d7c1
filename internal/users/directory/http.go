// Copyright (c) 2026 Motorparc. All rights reserved.

package directory

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/motorparc/motorparc/internal/platform/request"
	"github.com/motorparc/motorparc/internal/platform/respond"
	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/internal/platform/validate"
	"github.com/motorparc/motorparc/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements the account administration HTTP endpoints.
//
// # Scope
//
// Every route in this handler is admin-only; the router mounts it behind a
// role check, so handlers can assume an authenticated Admin session.
type Handler struct {
	directoryService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{directoryService: service}
}

// Routes returns a [chi.Router] configured with user administration routes.
//
// # Endpoints
//   - GET    /           : Lists directory accounts (paginated).
//   - POST   /           : Creates a new account.
//   - DELETE /{username} : Removes an account.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)
	router.Post("/", handler.create)
	router.Delete("/{username}", handler.remove)

	return router
}

// # Request Payloads

type createRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

/*
List returns the directory accounts in stable creation order.

GET /api/v1/users?page=&limit=

Response:
  - 200: []UserRecord with pagination metadata (password hashes omitted)
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	records, total, err := handler.directoryService.List(request.Context(), params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, records, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
Create enrolls a new account into the directory.

POST /api/v1/users

Description: Validates input, enforces case-insensitive username uniqueness,
and records the acting admin as the creator.

Request:
  - Body: createRequest (Username, Password, Role)

Response:
  - 201: UserRecord: Created account
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrUsernameTaken: Username already exists (case-insensitively)
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	actor, err := requestutil.RequiredUsername(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input createRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MaxLen(FieldUsername, input.Username, 64).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		OneOf(FieldRole, input.Role, string(sec.RoleAdmin), string(sec.RoleStaff))

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.directoryService.Create(request.Context(), CreateInput{
		Username:  input.Username,
		Password:  input.Password,
		Role:      sec.Role(input.Role),
		CreatedBy: actor,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, record)
}

/*
Remove deletes an account from the directory.

DELETE /api/v1/users/{username}

Description: Refuses to remove the final Admin account so the system can
never lock every administrator out.

Response:
  - 204: No Content: Account removed
  - 403: ErrLastAdmin: Target is the last remaining Admin
  - 404: ErrUserNotFound: No such account
*/
func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	actor, err := requestutil.RequiredUsername(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	username := requestutil.Param(request, FieldUsername)
	if username == "" {
		respond.Error(writer, request, validate.RequiredError(FieldUsername, "is required"))
		return
	}

	if _, err := handler.directoryService.Delete(request.Context(), username, actor); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
