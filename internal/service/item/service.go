package item

import (
	"context"
	"encoding/json"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
	"github.com/scripty-dev/starter-api/internal/validation"
)

// Topic is the event hub topic item changes are published on.
const Topic = "items"

// Event types published on Topic.
const (
	EventCreated = "item.created"
	EventUpdated = "item.updated"
	EventDeleted = "item.deleted"
)

// Publisher fans change events out to subscribers.
type Publisher interface {
	Broadcast(topic string, payload []byte)
}

// Service applies item rules on top of the repository.
type Service struct {
	items     repository.ItemRepository
	publisher Publisher
	validator *validation.Validator
	logger    *slog.Logger
}

// New constructs an item service. publisher may be nil.
func New(items repository.ItemRepository, publisher Publisher, validator *validation.Validator, logger *slog.Logger) Service {
	if validator == nil {
		validator = validation.New()
	}
	return Service{items: items, publisher: publisher, validator: validator, logger: logger}
}

// document is the validated shape of an item before persistence.
type document struct {
	Name        string   `json:"name" validate:"required,max=50"`
	Description string   `json:"description" validate:"required,max=500"`
	Price       *float64 `json:"price" validate:"required,min=0"`
	Quantity    int      `json:"quantity" validate:"min=0"`
	Category    string   `json:"category" validate:"required,category"`
}

var itemMessages = validation.Messages{
	"name.required":        "Please add a name",
	"name.max":             "Name cannot be more than 50 characters",
	"description.required": "Please add a description",
	"description.max":      "Description cannot be more than 500 characters",
	"price.required":       "Please add a price",
	"price.min":            "Price must be a positive number",
	"quantity.min":         "Quantity must be a positive number",
	"category.required":    "Please add a category",
	"category.category":    "`{value}` is not a valid category",
}

// List returns every item, newest first.
func (s Service) List(ctx context.Context) ([]domain.Item, error) {
	return s.items.ListItems(ctx)
}

// Get returns a single item. Malformed ids report repository.ErrNotFound.
func (s Service) Get(ctx context.Context, id string) (*domain.Item, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.items.GetItemByID(ctx, id)
}

// Create validates input, applies defaults and stores a new item.
func (s Service) Create(ctx context.Context, input domain.ItemInput) (*domain.Item, error) {
	doc := document{Quantity: 0, Category: string(domain.CategoryOther)}
	apply(&doc, input)
	if err := s.validator.Struct(doc, itemMessages); err != nil {
		return nil, err
	}
	item := doc.toItem(uuid.NewString())
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	s.logDebug("item created", "item_id", item.ID)
	s.publish(EventCreated, item)
	return item, nil
}

// Update merges the supplied fields onto the stored item and re-validates it.
func (s Service) Update(ctx context.Context, id string, input domain.ItemInput) (*domain.Item, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	current, err := s.items.GetItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	price := current.Price
	doc := document{
		Name:        current.Name,
		Description: current.Description,
		Price:       &price,
		Quantity:    current.Quantity,
		Category:    string(current.Category),
	}
	apply(&doc, input)
	if err := s.validator.Struct(doc, itemMessages); err != nil {
		return nil, err
	}
	item := doc.toItem(id)
	item.CreatedAt = current.CreatedAt
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	s.logDebug("item updated", "item_id", item.ID)
	s.publish(EventUpdated, item)
	return item, nil
}

// Delete removes an item.
func (s Service) Delete(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.items.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logDebug("item deleted", "item_id", id)
	s.publish(EventDeleted, map[string]string{"_id": id})
	return nil
}

func apply(doc *document, input domain.ItemInput) {
	if input.Name != nil {
		doc.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		doc.Description = *input.Description
	}
	if input.Price != nil {
		price := *input.Price
		doc.Price = &price
	}
	if input.Quantity != nil {
		doc.Quantity = *input.Quantity
	}
	if input.Category != nil {
		doc.Category = *input.Category
	}
}

func (d document) toItem(id string) *domain.Item {
	item := &domain.Item{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Quantity:    d.Quantity,
		Category:    domain.Category(d.Category),
	}
	if d.Price != nil {
		item.Price = *d.Price
	}
	return item
}

func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func (s Service) publish(eventType string, data any) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{"type": eventType, "data": data})
	if err != nil {
		s.logWarn("failed to marshal item event", "type", eventType, "error", err)
		return
	}
	s.publisher.Broadcast(Topic, payload)
}

func (s Service) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s Service) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
