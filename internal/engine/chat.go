package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novadream/internal/directive"
	"novadream/internal/domain"
)

// historyWindow bounds how much conversation is replayed to the assistant.
const historyWindow = 20

// ChatResult is the assistant's reply plus its confirmable action cards.
// DisplayText is the reply with directive spans stripped for rendering.
type ChatResult struct {
	UserMessage      domain.ChatMessage
	AssistantMessage domain.ChatMessage
	DisplayText      string
	Cards            []directive.Card
}

// Chat persists the user message, completes against the assistant backend
// with recent history, persists the reply and scans it for directives.
// Malformed assistant output simply yields zero cards.
func (e Engine) Chat(ctx context.Context, ownerID, text string) (ChatResult, error) {
	if ownerID == "" {
		return ChatResult{}, errors.New("owner is required")
	}
	if text == "" {
		return ChatResult{}, errors.New("message is required")
	}
	if e.Assistant == nil {
		return ChatResult{}, errors.New("assistant backend not configured")
	}
	history, err := e.Repo.ListChatMessages(ctx, ownerID, historyWindow)
	if err != nil {
		return ChatResult{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	userMsg := domain.ChatMessage{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Role:      "user",
		Content:   text,
		CreatedAt: now,
	}
	if err := e.Repo.InsertChatMessage(ctx, nil, userMsg); err != nil {
		return ChatResult{}, fmt.Errorf("store user message: %w", err)
	}

	reply, err := e.Assistant.Complete(ctx, history, text)
	if err != nil {
		return ChatResult{}, fmt.Errorf("assistant: %w", err)
	}

	assistantMsg := domain.ChatMessage{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Role:      "assistant",
		Content:   reply,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertChatMessage(ctx, nil, assistantMsg); err != nil {
		return ChatResult{}, fmt.Errorf("store assistant message: %w", err)
	}

	return ChatResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		DisplayText:      directive.Strip(reply),
		Cards:            directive.BuildCards(e.Executor, assistantMsg.ID, reply),
	}, nil
}

// ConfirmDirective re-scans the stored message the card came from and runs
// the referenced directive exactly once.
func (e Engine) ConfirmDirective(ctx context.Context, ownerID string, ref directive.Ref) error {
	if ownerID == "" {
		return directive.ErrUnauthenticated
	}
	d, err := e.directiveAt(ctx, ownerID, ref)
	if err != nil {
		return err
	}
	return e.Executor.Confirm(ctx, ownerID, ref, d)
}

// DismissDirective cancels a pending card without touching the store.
func (e Engine) DismissDirective(ctx context.Context, ownerID string, ref directive.Ref) error {
	if ownerID == "" {
		return directive.ErrUnauthenticated
	}
	if _, err := e.directiveAt(ctx, ownerID, ref); err != nil {
		return err
	}
	return e.Executor.Dismiss(ref)
}

func (e Engine) directiveAt(ctx context.Context, ownerID string, ref directive.Ref) (directive.Directive, error) {
	msg, err := e.Repo.GetChatMessage(ctx, ownerID, ref.MessageID)
	if err != nil {
		return directive.Directive{}, err
	}
	dirs := directive.Parse(msg.Content)
	if ref.Index < 0 || ref.Index >= len(dirs) {
		return directive.Directive{}, fmt.Errorf("message %s has no directive at index %d", ref.MessageID, ref.Index)
	}
	return dirs[ref.Index], nil
}
