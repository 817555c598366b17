package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/models"
)

type NoteDoc struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Ticket    uint   `json:"ticket"`
}

func docFromNote(n *models.Note) NoteDoc {
	return NoteDoc{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Text:      n.Text,
		Completed: n.Completed,
		Ticket:    n.Ticket,
	}
}

func IndexNote(ctx context.Context, es *elasticsearch.Client, index string, note *models.Note) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(docFromNote(note)); err != nil {
		return fmt.Errorf("index note: %w", err)
	}

	res, err := es.Index(
		index,
		&buf,
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(note.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index note: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index note: %s", res.Status())
	}
	return nil
}

func DeleteNote(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(id), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete note: %s", res.Status())
	}
	return nil
}

func SearchNotes(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []NoteDoc, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "text"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search notes: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search notes: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search notes: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source NoteDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, nil, fmt.Errorf("search notes: decode: %w", err)
	}

	notes := make([]NoteDoc, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		notes = append(notes, h.Source)
	}
	return parsed.Hits.Total.Value, notes, nil
}
