package handlers

import (
	"bytes"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/session"
)

// SaveSession handles POST /v1/sessions
func (h *Handler) SaveSession(c *fiber.Ctx) error {
	var req models.SaveSessionRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}
	sess, err := h.sessions.Save(c.UserContext(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.SessionSavedResponse{ID: sess.ID})
}

// ListSessions handles GET /v1/sessions
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	index, err := h.sessions.List(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(models.SessionListResponse{Sessions: index})
}

// LatestSession handles GET /v1/sessions/latest
func (h *Handler) LatestSession(c *fiber.Ctx) error {
	sess, err := h.sessions.Latest(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(sess)
}

// GetSession handles GET /v1/sessions/:sid
func (h *Handler) GetSession(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c.UserContext(), c.Params("sid"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(sess)
}

// DeleteSession handles DELETE /v1/sessions/:sid
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.UserContext(), c.Params("sid")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearSessions handles DELETE /v1/sessions
func (h *Handler) ClearSessions(c *fiber.Ctx) error {
	n, err := h.sessions.Clear(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"removed": n})
}

// ExportSession handles GET /v1/sessions/:sid/export as a file download
func (h *Handler) ExportSession(c *fiber.Ctx) error {
	var buf bytes.Buffer
	name, err := h.sessions.Export(c.UserContext(), c.Params("sid"), &buf)
	if err != nil {
		return h.respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, session.ExportContentType)
	c.Attachment(name)
	return c.Send(buf.Bytes())
}

// ExportSessionToSink handles POST /v1/sessions/:sid/export. The optional
// body names the key prefix in the export store.
func (h *Handler) ExportSessionToSink(c *fiber.Ctx) error {
	var req models.ExportRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
	}
	resp, err := h.sessions.ExportToSink(c.UserContext(), c.Params("sid"), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ImportSession handles POST /v1/sessions/import. The session file is the
// raw body or the "file" field of a multipart form.
func (h *Handler) ImportSession(c *fiber.Ctx) error {
	var r io.Reader
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return h.badRequest(c, "multipart upload needs a file field")
		}
		f, err := fh.Open()
		if err != nil {
			return h.badRequest(c, "cannot read uploaded file: "+err.Error())
		}
		defer f.Close()
		r = f
	} else {
		if len(c.Body()) == 0 {
			return h.badRequest(c, "session file is required")
		}
		r = bytes.NewReader(c.Body())
	}

	sess, err := h.sessions.Import(c.UserContext(), r)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.SessionSavedResponse{ID: sess.ID})
}

// RestoreSession handles POST /v1/sessions/:sid/restore
func (h *Handler) RestoreSession(c *fiber.Ctx) error {
	var req models.RestoreRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
	}
	info, err := h.sessions.Restore(c.UserContext(), c.Params("sid"), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	info.Connected = h.connections.IsConnected(info.SimulationID)
	return c.JSON(info)
}
