package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	esnotes "github.com/Mohammed-Elkharadly/backend-technote/internal/es"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/logging"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/models"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/mykafka"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/util"
)

type NoteHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

type noteWithUser struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Ticket    uint      `json:"ticket"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Username  string    `json:"username"`
}

func (h *NoteHandler) GetNotes(c echo.Context) error {
	ctx := c.Request().Context()

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Note{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load notes")
	}

	if total == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No notes found")
	}

	var items []noteWithUser
	err := h.DB.WithContext(ctx).Model(&models.Note{}).
		Select("notes.*, users.username AS username").
		Joins("JOIN users ON users.id = notes.user_id").
		Order("notes.id ASC").
		Offset(offset).Limit(limit).
		Scan(&items).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load notes")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *NoteHandler) CreateNote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "note_create")

	var req struct {
		UserID uint   `json:"user"`
		Title  string `json:"title"`
		Text   string `json:"text"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	if req.UserID == 0 || req.Title == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	var owner models.User
	if err := h.DB.WithContext(ctx).First(&owner, req.UserID).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid note data received")
	}

	// Title uniqueness is global and, unlike usernames, case-sensitive.
	// On the create path a duplicate is rejected as bad input; only an
	// update colliding with another note answers 409.
	var duplicate models.Note
	err := h.DB.WithContext(ctx).Where("title = ?", req.Title).First(&duplicate).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Duplicate note title")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not check title")
	}

	note := models.Note{
		UserID: req.UserID,
		Title:  req.Title,
		Text:   req.Text,
	}

	// Ticket allocation and insert share one transaction so a failed insert
	// never burns a number that a reader could have observed.
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := nextTicket(tx)
		if err != nil {
			return err
		}
		note.Ticket = ticket
		return tx.Create(&note).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusBadRequest, "Duplicate note title")
		}
		l.Error("note_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Invalid note data received")
	}

	h.index(c, &note)
	h.publish(c, fmt.Sprint(note.ID), map[string]interface{}{
		"type":   "note_created",
		"noteID": note.ID,
		"ticket": note.Ticket,
		"title":  note.Title,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "New note created",
	})
}

func (h *NoteHandler) UpdateNote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "note_update")

	var req struct {
		ID        uint   `json:"id"`
		UserID    uint   `json:"user"`
		Title     string `json:"title"`
		Text      string `json:"text"`
		Completed *bool  `json:"completed"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	if req.ID == 0 || req.UserID == 0 || req.Title == "" || req.Text == "" || req.Completed == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	var note models.Note
	if err := h.DB.WithContext(ctx).First(&note, req.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Note not found")
	}

	var duplicate models.Note
	err := h.DB.WithContext(ctx).Where("title = ? AND id <> ?", req.Title, req.ID).First(&duplicate).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Duplicate note title")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not check title")
	}

	note.UserID = req.UserID
	note.Title = req.Title
	note.Text = req.Text
	note.Completed = *req.Completed

	if err := h.DB.WithContext(ctx).Save(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "Duplicate note title")
		}
		l.Error("note_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update note")
	}

	h.index(c, &note)
	h.publish(c, fmt.Sprint(note.ID), map[string]interface{}{
		"type":   "note_updated",
		"noteID": note.ID,
		"title":  note.Title,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("%s updated", note.Title),
	})
}

func (h *NoteHandler) DeleteNote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "note_delete")

	var req struct {
		ID uint `json:"id"`
	}

	if err := c.Bind(&req); err != nil || req.ID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Note ID required")
	}

	var note models.Note
	if err := h.DB.WithContext(ctx).First(&note, req.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Note not found")
	}

	if err := h.DB.WithContext(ctx).Delete(&note).Error; err != nil {
		l.Error("note_delete_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete note")
	}

	h.deindex(c, note.ID)
	h.publish(c, fmt.Sprint(note.ID), map[string]interface{}{
		"type":   "note_deleted",
		"noteID": note.ID,
		"title":  note.Title,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Note '%s' with ID %d deleted", note.Title, note.ID),
	})
}

// nextTicket bumps the counter row and reads the new value. Tickets start at
// 500 (the counter is seeded at 499) and only ever move forward.
func nextTicket(tx *gorm.DB) (uint, error) {
	res := tx.Model(&models.TicketCounter{}).
		Where("name = ?", "ticketNums").
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errors.New("ticket counter missing")
	}

	var counter models.TicketCounter
	if err := tx.Where("name = ?", "ticketNums").First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (h *NoteHandler) index(c echo.Context, note *models.Note) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := esnotes.IndexNote(ctx, h.ES, h.Index, note); err != nil {
		logging.FromContext(c.Request().Context()).Error("es_index_error", "noteID", note.ID, "error", err)
	}
}

func (h *NoteHandler) deindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := esnotes.DeleteNote(ctx, h.ES, h.Index, id); err != nil {
		logging.FromContext(c.Request().Context()).Error("es_delete_error", "noteID", id, "error", err)
	}
}

func (h *NoteHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "note_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "topic", "note_events", "error", err)
	}
}
