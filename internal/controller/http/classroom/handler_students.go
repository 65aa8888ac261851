package classroom

import (
	"errors"
	"net/http"
	"strings"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	students "github.com/quipper/poc/classroom/be/pkg/repositories/students"
)

type studentBody struct {
	Email string `json:"email"`
	Code  string `json:"studentId"`
	Name  string `json:"name"`
}

// listStudents GET /api/students
func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	page, total, err := h.students.ListStudentsPage(r.Context(), offset, limit)
	if err != nil {
		logger.Error("list students: %v", err)
		http.Error(w, "failed to list students", http.StatusInternalServerError)
		return
	}
	setNextLink(w, r, offset, limit, total)
	if page == nil {
		page = []*students.Student{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "students": page})
}

// upsertStudent POST /api/students adds a directory entry or updates the one
// sharing its email or student ID.
func (h *Handler) upsertStudent(w http.ResponseWriter, r *http.Request) {
	var body studentBody
	if !decodeJSON(w, r, &body) {
		return
	}
	s := &students.Student{
		Email: strings.TrimSpace(body.Email),
		Code:  strings.TrimSpace(body.Code),
		Name:  strings.TrimSpace(body.Name),
	}
	if s.Email == "" && s.Code == "" {
		http.Error(w, "emailOrStudentIdRequired", http.StatusBadRequest)
		return
	}
	if s.Email != "" && !reconcile.ValidEmail(s.Email) {
		writeJSON(w, http.StatusBadRequest, invalidEmailResponse{Error: "invalidEmail", Invalid: []string{body.Email}})
		return
	}
	if err := h.students.UpsertStudent(r.Context(), s); err != nil {
		if errors.Is(err, students.ErrConflict) {
			http.Error(w, "studentConflict", http.StatusConflict)
			return
		}
		logger.Error("upsert student: %v", err)
		http.Error(w, "failed to save student", http.StatusInternalServerError)
		return
	}
	logger.Debug("upsertStudent: id=%s", s.ID)
	writeJSON(w, http.StatusOK, s)
}
