// Package module implements the content modules registered with the dispatcher.
//
// Every module reads its schedules from a ScheduleStore and selects the ones
// whose posting times contain the current bucket verbatim. Modules differ in
// which schedules they accept and in the generation context they attach.
package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

const (
	QuotesID     = "quotes"
	CharactersID = "characters"
	ReelsID      = "reels"

	defaultQuoteCategory = "motivation"
)

// Payload keys shared with the generation and publish stages
const (
	PayloadCategory  = "category"
	PayloadStyle     = "style"
	PayloadTopic     = "topic"
	PayloadPrompt    = "prompt"
	PayloadHashtags  = "hashtags"
	PayloadCharacter = "character"
)

// scheduleModule carries what the concrete modules share
type scheduleModule struct {
	id          string
	name        string
	target      string
	contentType model.ContentType
	store       ScheduleStore
}

func (m *scheduleModule) ID() string            { return m.id }
func (m *scheduleModule) Name() string          { return m.name }
func (m *scheduleModule) PublishTarget() string { return m.target }

// due loads the module's schedules and keeps the enabled ones posting at bucket
func (m *scheduleModule) due(ctx context.Context, bucket string) ([]model.Schedule, error) {
	schedules, err := m.store.List(ctx, m.id)
	if err != nil {
		return nil, err
	}
	out := schedules[:0]
	for _, s := range schedules {
		if s.Enabled && strings.TrimSpace(s.AccountRef) != "" && s.PostsAt(bucket) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *scheduleModule) item(s *model.Schedule, payload map[string]string) model.ScheduledItem {
	for k, v := range s.Extra {
		if _, ok := payload[k]; !ok {
			payload[k] = v
		}
	}
	if len(s.Hashtags) > 0 {
		payload[PayloadHashtags] = strings.Join(s.Hashtags, " ")
	}
	return model.ScheduledItem{
		ModuleID:    m.id,
		ItemID:      s.ID,
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		AccountRef:  s.AccountRef,
		ContentType: m.contentType,
		Payload:     payload,
	}
}

// QuoteModule posts generated quote cards
type QuoteModule struct{ scheduleModule }

func NewQuoteModule(store ScheduleStore, target string) *QuoteModule {
	return &QuoteModule{scheduleModule{
		id: QuotesID, name: "Quote cards", target: target,
		contentType: model.ContentTypeImage, store: store,
	}}
}

func (m *QuoteModule) FindDueItems(ctx context.Context, bucket string) ([]model.ScheduledItem, error) {
	schedules, err := m.due(ctx, bucket)
	if err != nil {
		return nil, err
	}
	items := make([]model.ScheduledItem, 0, len(schedules))
	for i := range schedules {
		s := &schedules[i]
		category := s.Category
		if category == "" {
			category = defaultQuoteCategory
		}
		items = append(items, m.item(s, map[string]string{
			PayloadCategory: category,
			PayloadStyle:    s.Style,
		}))
	}
	return items, nil
}

// CharacterModule posts scenes featuring a user-defined AI character
type CharacterModule struct{ scheduleModule }

func NewCharacterModule(store ScheduleStore, target string) *CharacterModule {
	return &CharacterModule{scheduleModule{
		id: CharactersID, name: "AI character posts", target: target,
		contentType: model.ContentTypeImage, store: store,
	}}
}

func (m *CharacterModule) FindDueItems(ctx context.Context, bucket string) ([]model.ScheduledItem, error) {
	schedules, err := m.due(ctx, bucket)
	if err != nil {
		return nil, err
	}
	items := make([]model.ScheduledItem, 0, len(schedules))
	for i := range schedules {
		s := &schedules[i]
		if strings.TrimSpace(s.Prompt) == "" {
			continue
		}
		character := s.DisplayName
		if character == "" {
			character = fmt.Sprintf("character %s", s.ID)
		}
		items = append(items, m.item(s, map[string]string{
			PayloadCharacter: character,
			PayloadPrompt:    s.Prompt,
			PayloadStyle:     s.Style,
			PayloadCategory:  s.Category,
		}))
	}
	return items, nil
}

// ReelModule posts short generated videos on a topic
type ReelModule struct{ scheduleModule }

func NewReelModule(store ScheduleStore, target string) *ReelModule {
	return &ReelModule{scheduleModule{
		id: ReelsID, name: "Reels", target: target,
		contentType: model.ContentTypeVideo, store: store,
	}}
}

func (m *ReelModule) FindDueItems(ctx context.Context, bucket string) ([]model.ScheduledItem, error) {
	schedules, err := m.due(ctx, bucket)
	if err != nil {
		return nil, err
	}
	items := make([]model.ScheduledItem, 0, len(schedules))
	for i := range schedules {
		s := &schedules[i]
		if strings.TrimSpace(s.Topic) == "" {
			continue
		}
		items = append(items, m.item(s, map[string]string{
			PayloadTopic: s.Topic,
			PayloadStyle: s.Style,
		}))
	}
	return items, nil
}
