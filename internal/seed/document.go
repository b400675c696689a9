// Package seed loads the user directory and demo threads the API starts with.
package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

//go:embed seed.schema.json
var schemaSource string

const schemaURL = "https://dossier-messaging.local/seed.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// ErrInvalidDocument wraps schema violations of a seed file.
var ErrInvalidDocument = errors.New("invalid seed document")

// Document is the on-disk seed format.
type Document struct {
	Users   []models.User `json:"users"`
	Threads []ThreadSeed  `json:"threads,omitempty"`
}

// ThreadSeed describes a thread and the conversation replayed into it.
type ThreadSeed struct {
	DossierRef   string        `json:"dossier_ref"`
	DossierTitle string        `json:"dossier_title"`
	Participants []string      `json:"participants"`
	Messages     []MessageSeed `json:"messages,omitempty"`
}

// MessageSeed is replayed through the messaging service, so every rule of a live post applies.
type MessageSeed struct {
	SenderID    string                  `json:"sender_id"`
	Content     string                  `json:"content,omitempty"`
	MentionIDs  []string                `json:"mention_ids,omitempty"`
	ReadBy      []string                `json:"read_by,omitempty"`
	Attachments []dto.AttachmentRequest `json:"attachments,omitempty"`
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = jsonschema.CompileString(schemaURL, schemaSource)
	})
	return compiledSchema, compileErr
}

// Load reads and validates a seed file.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw against the seed schema and decodes it.
func Parse(raw []byte) (Document, error) {
	compiled, err := schema()
	if err != nil {
		return Document{}, fmt.Errorf("compile seed schema: %w", err)
	}

	var generic interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	err = decoder.Decode(&generic)
	if err == nil {
		if t, _ := decoder.Token(); t != nil {
			err = fmt.Errorf("invalid character %v after top-level value", t)
		}
	}
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := compiled.Validate(generic); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode seed document: %w", err)
	}
	return doc, nil
}
