package classroom

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	roster "github.com/quipper/poc/classroom/be/pkg/repositories/roster"
)

type classBody struct {
	Name          string   `json:"name"`
	TeacherName   string   `json:"teacherName"`
	Description   string   `json:"description"`
	StudentEmails []string `json:"studentEmails"`
	StudentIDs    []string `json:"studentIds"`
}

type removeBody struct {
	StudentEmails []string `json:"studentEmails"`
	StudentIDs    []string `json:"studentIds"`
}

type rosterBody struct {
	AddEmails    []string `json:"addEmails"`
	AddIDs       []string `json:"addIds"`
	RemoveEmails []string `json:"removeEmails"`
	RemoveIDs    []string `json:"removeIds"`
}

// classDetail is a class together with its current students.
type classDetail struct {
	*roster.Class
	Students []*roster.Member `json:"students"`
}

type addStudentsResponse struct {
	classDetail
	reconcile.NotFound
	Duplicates []string `json:"duplicates,omitempty"`
}

type removeStudentsResponse struct {
	RemovedCount int `json:"removedCount"`
	reconcile.NotFound
	Duplicates []string `json:"duplicates,omitempty"`
}

type rosterResponse struct {
	reconcile.Report
	Duplicates []string `json:"duplicates,omitempty"`
}

type invalidEmailResponse struct {
	Error      string   `json:"error"`
	Invalid    []string `json:"invalid"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// identifierLists collects raw boundary input into identifier sets. Emails
// that do not look like an address reject the whole request; duplicates are
// dropped and reported back.
type identifierLists struct {
	invalid    []string
	duplicates []string
}

func (l *identifierLists) emails(raws []string) *reconcile.IdentifierSet {
	set, invalid, dup := reconcile.Collect(reconcile.KindEmail, raws)
	l.invalid = append(l.invalid, invalid...)
	l.duplicates = append(l.duplicates, dup...)
	return set
}

func (l *identifierLists) codes(raws []string) *reconcile.IdentifierSet {
	set, _, dup := reconcile.Collect(reconcile.KindStudentCode, raws)
	l.duplicates = append(l.duplicates, dup...)
	return set
}

// rejectInvalid writes 400 invalidEmail when any email was malformed.
func (l *identifierLists) rejectInvalid(w http.ResponseWriter) bool {
	if len(l.invalid) == 0 {
		return false
	}
	writeJSON(w, http.StatusBadRequest, invalidEmailResponse{Error: "invalidEmail", Invalid: l.invalid, Duplicates: l.duplicates})
	return true
}

// loadOwnedClass fetches {classId} and checks it belongs to the caller.
func (h *Handler) loadOwnedClass(w http.ResponseWriter, r *http.Request) (*roster.Class, bool) {
	id := chi.URLParam(r, "classId")
	c, err := h.roster.GetClass(r.Context(), id)
	if err != nil {
		logger.Error("get class %s: %v", id, err)
		http.Error(w, "failed to load class", http.StatusInternalServerError)
		return nil, false
	}
	if c == nil {
		http.Error(w, "classNotFound", http.StatusNotFound)
		return nil, false
	}
	if t := TeacherFromContext(r.Context()); t == nil || c.TeacherID != t.ID {
		logger.Debug("loadOwnedClass: class=%s not owned by caller", id)
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return c, true
}

// applyRoster runs req and records the outcome for the teacher. A failure to
// record is logged and otherwise ignored.
func (h *Handler) applyRoster(ctx context.Context, req reconcile.Request) (reconcile.Outcome, error) {
	if req.Empty() {
		return reconcile.Outcome{}, nil
	}
	out, err := h.reconciler.Reconcile(ctx, req)
	if err != nil {
		logger.Error("reconcile class %s: %v", req.ClassID, err)
	}
	if nerr := h.notifications.Notify(ctx, req.ClassID, out, err); nerr != nil {
		logger.Error("notify class %s: %v", req.ClassID, nerr)
	}
	return out, err
}

// writeReconcileError answers 502 with whatever the reconciliation achieved
// when a phase failed. It reports whether a response was written.
func writeReconcileError(w http.ResponseWriter, out reconcile.Outcome, err error, duplicates []string) bool {
	if err == nil {
		return false
	}
	var pe *reconcile.PhaseError
	if !errors.As(err, &pe) {
		http.Error(w, "failed to update class", http.StatusInternalServerError)
		return true
	}
	writeJSON(w, http.StatusBadGateway, rosterResponse{Report: reconcile.NewReport(out, err), Duplicates: duplicates})
	return true
}

func (h *Handler) detail(ctx context.Context, id string) (*classDetail, error) {
	c, err := h.roster.GetClass(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	members, err := h.allMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &classDetail{Class: c, Students: members}, nil
}

func (h *Handler) allMembers(ctx context.Context, classID string) ([]*roster.Member, error) {
	const pageSize = 500
	out := []*roster.Member{}
	for offset := 0; ; offset += pageSize {
		page, total, err := h.roster.ListMembersPage(ctx, classID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if offset+pageSize >= total || len(page) == 0 {
			return out, nil
		}
	}
}

// listClasses GET /api/classes
func (h *Handler) listClasses(w http.ResponseWriter, r *http.Request) {
	t := TeacherFromContext(r.Context())
	classes, err := h.roster.ListClassesByTeacher(r.Context(), t.ID)
	if err != nil {
		logger.Error("list classes for %s: %v", t.ID, err)
		http.Error(w, "failed to list classes", http.StatusInternalServerError)
		return
	}
	if classes == nil {
		classes = []*roster.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}

// createClass POST /api/classes
func (h *Handler) createClass(w http.ResponseWriter, r *http.Request) {
	logger.Debug("createClass: start")
	var body classBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "classNameRequired", http.StatusBadRequest)
		return
	}
	var lists identifierLists
	addEmails := lists.emails(body.StudentEmails)
	addCodes := lists.codes(body.StudentIDs)
	if lists.rejectInvalid(w) {
		return
	}

	t := TeacherFromContext(r.Context())
	c := &roster.Class{
		TeacherID:   t.ID,
		Name:        strings.TrimSpace(body.Name),
		TeacherName: strings.TrimSpace(body.TeacherName),
		Description: body.Description,
	}
	if err := h.roster.CreateClass(r.Context(), c); err != nil {
		logger.Error("create class: %v", err)
		http.Error(w, "failed to create class", http.StatusInternalServerError)
		return
	}
	logger.Debug("createClass: created id=%s teacher=%s", c.ID, t.ID)

	h.respondAdd(w, r, c.ID, addEmails, addCodes, lists.duplicates, http.StatusCreated)
}

// getClass GET /api/classes/{classId}
func (h *Handler) getClass(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	members, err := h.allMembers(r.Context(), c.ID)
	if err != nil {
		logger.Error("list members of %s: %v", c.ID, err)
		http.Error(w, "failed to load students", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, classDetail{Class: c, Students: members})
}

// updateClass PUT /api/classes/{classId} updates the class fields and adds
// the listed students.
func (h *Handler) updateClass(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	var body classBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "classNameRequired", http.StatusBadRequest)
		return
	}
	var lists identifierLists
	addEmails := lists.emails(body.StudentEmails)
	addCodes := lists.codes(body.StudentIDs)
	if lists.rejectInvalid(w) {
		return
	}

	c.Name = strings.TrimSpace(body.Name)
	c.TeacherName = strings.TrimSpace(body.TeacherName)
	c.Description = body.Description
	if err := h.roster.UpdateClass(r.Context(), c); err != nil {
		logger.Error("update class %s: %v", c.ID, err)
		http.Error(w, "failed to update class", http.StatusInternalServerError)
		return
	}

	h.respondAdd(w, r, c.ID, addEmails, addCodes, lists.duplicates, http.StatusOK)
}

func (h *Handler) respondAdd(w http.ResponseWriter, r *http.Request, classID string, addEmails, addCodes *reconcile.IdentifierSet, duplicates []string, status int) {
	ctx := r.Context()
	out, err := h.applyRoster(ctx, reconcile.Request{ClassID: classID, AddEmails: addEmails, AddCodes: addCodes})
	if writeReconcileError(w, out, err, duplicates) {
		return
	}
	d, err := h.detail(ctx, classID)
	if err != nil || d == nil {
		logger.Error("reload class %s: %v", classID, err)
		http.Error(w, "failed to load class", http.StatusInternalServerError)
		return
	}
	resp := addStudentsResponse{classDetail: *d, Duplicates: duplicates}
	resp.Emails, resp.IDs = reconcile.SplitByKind(out.NotFoundOnAdd)
	writeJSON(w, status, resp)
}

// deleteClass DELETE /api/classes/{classId}
func (h *Handler) deleteClass(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	if err := h.roster.DeleteClass(r.Context(), c.ID); err != nil {
		logger.Error("delete class %s: %v", c.ID, err)
		http.Error(w, "failed to delete class", http.StatusInternalServerError)
		return
	}
	logger.Debug("deleteClass: deleted id=%s", c.ID)
	w.WriteHeader(http.StatusNoContent)
}

// removeStudents POST /api/classes/{classId}/students/remove
func (h *Handler) removeStudents(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	var body removeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	var lists identifierLists
	req := reconcile.Request{
		ClassID:      c.ID,
		RemoveEmails: lists.emails(body.StudentEmails),
		RemoveCodes:  lists.codes(body.StudentIDs),
	}
	if lists.rejectInvalid(w) {
		return
	}

	out, err := h.applyRoster(r.Context(), req)
	if writeReconcileError(w, out, err, lists.duplicates) {
		return
	}
	resp := removeStudentsResponse{RemovedCount: out.RemovedCount, Duplicates: lists.duplicates}
	resp.Emails, resp.IDs = reconcile.SplitByKind(out.NotFoundOnRemove)
	logger.Debug("removeStudents: class=%s removed=%d", c.ID, out.RemovedCount)
	writeJSON(w, http.StatusOK, resp)
}

// patchRoster PATCH /api/classes/{classId}/roster runs additions then
// removals and returns the full report.
func (h *Handler) patchRoster(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadOwnedClass(w, r)
	if !ok {
		return
	}
	var body rosterBody
	if !decodeJSON(w, r, &body) {
		return
	}
	var lists identifierLists
	req := reconcile.Request{
		ClassID:      c.ID,
		AddEmails:    lists.emails(body.AddEmails),
		AddCodes:     lists.codes(body.AddIDs),
		RemoveEmails: lists.emails(body.RemoveEmails),
		RemoveCodes:  lists.codes(body.RemoveIDs),
	}
	if lists.rejectInvalid(w) {
		return
	}

	out, err := h.applyRoster(r.Context(), req)
	if writeReconcileError(w, out, err, lists.duplicates) {
		return
	}
	writeJSON(w, http.StatusOK, rosterResponse{Report: reconcile.NewReport(out, nil), Duplicates: lists.duplicates})
}
