package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/config"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/models"
)

func TestGetNotesEmpty(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/notes", nil)
	err := env.Notes.GetNotes(c)
	requireHTTPError(t, err, http.StatusNotFound)
}

func TestGetNotesIncludesUsername(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	env.createNote(user.ID, "Fix the amp", "It hums")
	env.createNote(user.ID, "Restring guitar", "Before Friday")

	rec, c := env.doJSONRequest(http.MethodGet, "/notes", nil)
	require.NoError(t, env.Notes.GetNotes(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []noteWithUser `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(2), resp.Meta.Total)
	require.Len(t, resp.Data, 2)
	for _, n := range resp.Data {
		require.Equal(t, "dave_grohl", n.Username)
	}
}

func TestCreateNoteTicketSequence(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)

	for i, title := range []string{"First note", "Second note", "Third note"} {
		payload := map[string]interface{}{
			"user":  user.ID,
			"title": title,
			"text":  "some text",
		}
		rec, c := env.doJSONRequest(http.MethodPost, "/notes", payload)
		require.NoError(t, env.Notes.CreateNote(c))
		require.Equal(t, http.StatusCreated, rec.Code)

		var note models.Note
		require.NoError(t, env.DB.Where("title = ?", title).First(&note).Error)
		require.Equal(t, uint(config.TicketSeqStart+i), note.Ticket)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)

	for _, payload := range []map[string]interface{}{
		{"title": "No owner", "text": "text"},
		{"user": user.ID, "text": "text"},
		{"user": user.ID, "title": "No text"},
	} {
		_, c := env.doJSONRequest(http.MethodPost, "/notes", payload)
		err := env.Notes.CreateNote(c)
		requireHTTPError(t, err, http.StatusBadRequest)
	}
}

func TestCreateNoteUnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]interface{}{
		"user":  999,
		"title": "Orphan note",
		"text":  "text",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/notes", payload)
	err := env.Notes.CreateNote(c)
	requireHTTPError(t, err, http.StatusBadRequest)
}

func TestCreateNoteDuplicateTitle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	other := env.createUser("kurt_cobain", "password123", []string{"Employee"}, true)
	env.createNote(user.ID, "Fix the amp", "It hums")

	// Titles are unique across all users, not per owner. A duplicate on
	// create is rejected as bad input, not as a conflict.
	payload := map[string]interface{}{
		"user":  other.ID,
		"title": "Fix the amp",
		"text":  "Different text",
	}
	_, c := env.doJSONRequest(http.MethodPost, "/notes", payload)
	err := env.Notes.CreateNote(c)
	he := requireHTTPError(t, err, http.StatusBadRequest)
	require.Equal(t, "Duplicate note title", he.Message)
}

func TestCreateNoteTitleCaseSensitive(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	env.createNote(user.ID, "Fix the amp", "It hums")

	// Unlike usernames, the duplicate-title check is case-sensitive.
	payload := map[string]interface{}{
		"user":  user.ID,
		"title": "fix the amp",
		"text":  "Lower-case twin",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/notes", payload)
	require.NoError(t, env.Notes.CreateNote(c))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateNote(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	note := env.createNote(user.ID, "Fix the amp", "It hums")

	payload := map[string]interface{}{
		"id":        note.ID,
		"user":      user.ID,
		"title":     "Fix the amp",
		"text":      "It hums badly",
		"completed": true,
	}
	rec, c := env.doJSONRequest(http.MethodPatch, "/notes", payload)
	require.NoError(t, env.Notes.UpdateNote(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Note
	require.NoError(t, env.DB.First(&updated, note.ID).Error)
	require.True(t, updated.Completed)
	require.Equal(t, "It hums badly", updated.Text)
	require.Equal(t, note.Ticket, updated.Ticket, "ticket never changes")
}

func TestUpdateNoteDuplicateTitle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	env.createNote(user.ID, "Fix the amp", "It hums")
	second := env.createNote(user.ID, "Restring guitar", "Before Friday")

	payload := map[string]interface{}{
		"id":        second.ID,
		"user":      user.ID,
		"title":     "Fix the amp",
		"text":      "text",
		"completed": false,
	}
	_, c := env.doJSONRequest(http.MethodPatch, "/notes", payload)
	err := env.Notes.UpdateNote(c)
	requireHTTPError(t, err, http.StatusConflict)
}

func TestUpdateNoteNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)

	payload := map[string]interface{}{
		"id":        999,
		"user":      user.ID,
		"title":     "Ghost note",
		"text":      "text",
		"completed": false,
	}
	_, c := env.doJSONRequest(http.MethodPatch, "/notes", payload)
	err := env.Notes.UpdateNote(c)
	requireHTTPError(t, err, http.StatusNotFound)
}

func TestDeleteNote(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	note := env.createNote(user.ID, "Fix the amp", "It hums")

	payload := map[string]interface{}{"id": note.ID}
	rec, c := env.doJSONRequest(http.MethodDelete, "/notes", payload)
	require.NoError(t, env.Notes.DeleteNote(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Note{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDeleteNoteTicketNotReused(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave_grohl", "password123", []string{"Employee"}, true)
	first := env.createNote(user.ID, "Fix the amp", "It hums")

	payload := map[string]interface{}{"id": first.ID}
	_, c := env.doJSONRequest(http.MethodDelete, "/notes", payload)
	require.NoError(t, env.Notes.DeleteNote(c))

	second := env.createNote(user.ID, "Restring guitar", "Before Friday")
	require.Greater(t, second.Ticket, first.Ticket)
}

func TestDeleteNoteNotFound(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]interface{}{"id": 999}
	_, c := env.doJSONRequest(http.MethodDelete, "/notes", payload)
	err := env.Notes.DeleteNote(c)
	requireHTTPError(t, err, http.StatusNotFound)
}

func TestDeleteNoteMissingID(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodDelete, "/notes", map[string]interface{}{})
	err := env.Notes.DeleteNote(c)
	requireHTTPError(t, err, http.StatusBadRequest)
}
