package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/httputil"
	"github.com/platinummonkey/sitemgmt/pkg/middleware"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// Messages for failed directory requests
const (
	MessageEmailRequired    = "Email cannot be null"
	MessageInvalidEmail     = "Invalid email format"
	MessageEmailExists      = "Email already exists"
	MessageAdminNotFound    = "Admin not found"
	MessageAdminInactive    = "Admin not activated"
	MessageRequestFailed    = "Error processing the admin request"
	MessageDeactivateFailed = "Error deactivating an admin"
)

// formView describes an admin form to the client
type formView struct {
	Form   string   `json:"form"`
	Action string   `json:"action"`
	Method string   `json:"method"`
	Fields []string `json:"fields"`
}

// directoryErrorStatus maps a directory error to its HTTP status and the
// message shown to the operator. persistenceMessage is used for store
// failures so internal details stay in the log.
func directoryErrorStatus(err error, persistenceMessage string) (int, string) {
	switch {
	case errors.Is(err, directory.ErrEmptyEmail):
		return http.StatusBadRequest, MessageEmailRequired
	case errors.Is(err, directory.ErrInvalidEmail):
		return http.StatusBadRequest, MessageInvalidEmail
	case errors.Is(err, directory.ErrEmailConflict):
		return http.StatusBadRequest, MessageEmailExists
	case errors.Is(err, directory.ErrInactive):
		return http.StatusBadRequest, MessageAdminInactive
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound, MessageAdminNotFound
	default:
		return http.StatusInternalServerError, persistenceMessage
	}
}

func writeDirectoryError(w http.ResponseWriter, r *http.Request, err error, persistenceMessage string) {
	status, message := directoryErrorStatus(err, persistenceMessage)
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("Admin directory request failed")
	}
	httputil.WriteErrorMessage(w, status, message)
}

// logRosterChange records a successful roster mutation with its actor
func logRosterChange(r *http.Request, operation, target string, result directory.Result) {
	logger := observability.FromContext(r.Context()).
		WithField("operation", operation).
		WithField("target", directory.NormalizeEmail(target)).
		WithField("result", result.String())
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		logger = logger.WithField("actor", claims.Email)
	}
	logger.Info("Admin roster changed")
}

// formValues parses the submitted fields, writing a 400 on malformed bodies
func formValues(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	values, err := httputil.ParseValues(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}
	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = strings.TrimSpace(values.Get(k))
	}
	return fields, true
}

// addAdminForm handles GET /add_admin
func (s *Server) addAdminForm(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, formView{
		Form: "add_admin", Action: "/add_admin", Method: http.MethodPost,
		Fields: []string{"email"},
	})
}

// addAdmin handles POST /add_admin
func (s *Server) addAdmin(w http.ResponseWriter, r *http.Request) {
	fields, ok := formValues(w, r)
	if !ok {
		return
	}
	if fields["email"] == "" {
		httputil.WriteBadRequest(w, MessageEmailRequired)
		return
	}

	result, admin, err := s.directory.CreateOrReactivate(r.Context(), fields["email"])
	if err != nil {
		writeDirectoryError(w, r, err, MessageRequestFailed)
		return
	}
	logRosterChange(r, "add", fields["email"], result)

	httputil.WriteSuccessMessage(w, result.Message(), map[string]interface{}{
		"result": result.String(),
		"admin":  admin,
	})
}

// deleteAdminForm handles GET /delete_admin
func (s *Server) deleteAdminForm(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, formView{
		Form: "delete_admin", Action: "/delete_admin", Method: http.MethodPost,
		Fields: []string{"email"},
	})
}

// deleteAdmin handles POST /delete_admin
func (s *Server) deleteAdmin(w http.ResponseWriter, r *http.Request) {
	fields, ok := formValues(w, r)
	if !ok {
		return
	}
	if fields["email"] == "" {
		httputil.WriteBadRequest(w, MessageEmailRequired)
		return
	}

	result, err := s.directory.Deactivate(r.Context(), fields["email"])
	if err != nil {
		writeDirectoryError(w, r, err, MessageDeactivateFailed)
		return
	}
	logRosterChange(r, "deactivate", fields["email"], result)

	httputil.WriteSuccessMessage(w, result.Message(), map[string]interface{}{
		"result": result.String(),
		"email":  directory.NormalizeEmail(fields["email"]),
	})
}

// updateAdminForm handles GET /update_admin
func (s *Server) updateAdminForm(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, formView{
		Form: "update_admin", Action: "/update_admin", Method: http.MethodPost,
		Fields: []string{"old_email", "new_email"},
	})
}

// updateAdmin handles POST /update_admin. An empty new_email only
// reactivates the admin.
func (s *Server) updateAdmin(w http.ResponseWriter, r *http.Request) {
	fields, ok := formValues(w, r)
	if !ok {
		return
	}
	oldEmail := fields["old_email"]
	if oldEmail == "" {
		oldEmail = fields["email"]
	}
	if oldEmail == "" {
		httputil.WriteBadRequest(w, MessageEmailRequired)
		return
	}

	result, err := s.directory.UpdateEmail(r.Context(), oldEmail, fields["new_email"])
	if err != nil {
		writeDirectoryError(w, r, err, MessageRequestFailed)
		return
	}
	logRosterChange(r, "update", oldEmail, result)

	httputil.WriteSuccessMessage(w, result.Message(), map[string]interface{}{
		"result":    result.String(),
		"old_email": directory.NormalizeEmail(oldEmail),
		"new_email": directory.NormalizeEmail(fields["new_email"]),
	})
}

// listAdmins handles GET /admins
func (s *Server) listAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.directory.List(r.Context())
	if err != nil {
		writeDirectoryError(w, r, err, MessageRequestFailed)
		return
	}
	if admins == nil {
		admins = []*directory.Admin{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"admins": admins})
}

// getAdmin handles GET /admins/{id}
func (s *Server) getAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	admin, err := s.directory.Get(r.Context(), id)
	if err != nil {
		writeDirectoryError(w, r, err, MessageRequestFailed)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admin)
}
