package server

import (
	"encoding/json"

	"novadream/internal/directive"
	"novadream/internal/domain"
	"novadream/internal/reconcile"
)

// Request payloads

type CreateProjectRequest struct {
	Title       string `json:"title"`
	Segment     string `json:"segment,omitempty"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

type CreateMissionRequest struct {
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	Deadline          string  `json:"deadline,omitempty"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
}

type UpdateMissionRequest struct {
	Status      string  `json:"status,omitempty" enum:"pending,in_progress,completed"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	MissionID   string `json:"mission_id,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate     string `json:"due_date,omitempty"`
}

type UpdateTaskRequest struct {
	Status      *string `json:"status,omitempty" enum:"todo,doing,done"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	TimeSpent   *int    `json:"time_spent,omitempty"`
}

type CreateTransactionRequest struct {
	Type        string  `json:"type,omitempty" enum:"income,expense"`
	Amount      float64 `json:"amount"`
	Segment     string  `json:"segment,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date,omitempty"`
}

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type DirectiveRefRequest struct {
	MessageID string `json:"message_id"`
	Index     int    `json:"index"`
}

type RoadmapMissionRequest struct {
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
}

type RoadmapPreviewRequest struct {
	Missions []RoadmapMissionRequest `json:"missions,omitempty"`
	Text     string                  `json:"text,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// Response payloads

type ProjectResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Segment     string  `json:"segment"`
	Status      string  `json:"status" enum:"planned,active,completed"`
	Progress    int     `json:"progress"`
	Description string  `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type MissionResponse struct {
	ID                string  `json:"id"`
	ProjectID         string  `json:"project_id"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	Status            string  `json:"status" enum:"pending,in_progress,completed"`
	OrderIndex        int     `json:"order_index"`
	Deadline          *string `json:"deadline,omitempty"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   *string `json:"project_id,omitempty"`
	MissionID   *string `json:"mission_id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status" enum:"todo,doing,done"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type TransactionResponse struct {
	ID               string  `json:"id"`
	Type             string  `json:"type" enum:"income,expense"`
	Amount           float64 `json:"amount"`
	Segment          string  `json:"segment"`
	Description      string  `json:"description,omitempty"`
	Date             string  `json:"date"`
	CountsTowardGoal bool    `json:"counts_toward_goal"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type NoteResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type DocumentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ChatMessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role" enum:"user,assistant"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ActionCardResponse struct {
	MessageID string            `json:"message_id"`
	Index     int               `json:"index"`
	Type      string            `json:"type"`
	Label     string            `json:"label"`
	Icon      string            `json:"icon"`
	Params    map[string]string `json:"params,omitempty"`
	State     string            `json:"state" enum:"pending,executing,executed,dismissed"`
	Unknown   bool              `json:"unknown,omitempty"`
}

type ChatResponse struct {
	UserMessage      ChatMessageResponse  `json:"user_message"`
	AssistantMessage ChatMessageResponse  `json:"assistant_message"`
	DisplayText      string               `json:"display_text"`
	Cards            []ActionCardResponse `json:"cards,omitempty"`
}

type RoadmapDiffResponse struct {
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
	Classification    string  `json:"classification" enum:"create,update,identical"`
	MissionID         string  `json:"mission_id,omitempty"`
	Score             float64 `json:"score,omitempty"`
}

type RoadmapPreviewResponse struct {
	Diffs     []RoadmapDiffResponse `json:"diffs"`
	Create    int                   `json:"create"`
	Update    int                   `json:"update"`
	Identical int                   `json:"identical"`
}

type RoadmapApplyResponse struct {
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Report        string `json:"report"`
	ReportPath    string `json:"report_path,omitempty"`
	ReportWarning string `json:"report_warning,omitempty"`
}

type StatusSummaryResponse struct {
	Tasks    map[string]int `json:"tasks"`
	Missions map[string]int `json:"missions,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Mapping helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Segment:     p.Segment,
		Status:      p.Status,
		Progress:    p.Progress,
		Description: p.Description,
		Deadline:    p.Deadline,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func missionResponse(m domain.Mission) MissionResponse {
	return MissionResponse{
		ID:                m.ID,
		ProjectID:         m.ProjectID,
		Title:             m.Title,
		Description:       m.Description,
		Status:            m.Status,
		OrderIndex:        m.OrderIndex,
		Deadline:          m.Deadline,
		EstimatedDuration: m.EstimatedDuration,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func mapMissions(items []domain.Mission) []MissionResponse {
	out := make([]MissionResponse, 0, len(items))
	for _, m := range items {
		out = append(out, missionResponse(m))
	}
	return out
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		MissionID:   t.MissionID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func transactionResponse(t domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:               t.ID,
		Type:             t.Type,
		Amount:           t.Amount,
		Segment:          t.Segment,
		Description:      t.Description,
		Date:             t.Date,
		CountsTowardGoal: t.CountsTowardGoal,
		CreatedAt:        t.CreatedAt,
	}
}

func mapTransactions(items []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, transactionResponse(t))
	}
	return out
}

func noteResponse(n domain.Note) NoteResponse {
	return NoteResponse{ID: n.ID, Title: n.Title, Content: n.Content, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt}
}

func documentResponse(d domain.Document) DocumentResponse {
	return DocumentResponse{ID: d.ID, Name: d.Name, MimeType: d.MimeType, SizeBytes: d.SizeBytes, CreatedAt: d.CreatedAt}
}

func chatMessageResponse(m domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func cardResponse(c directive.Card) ActionCardResponse {
	return ActionCardResponse{
		MessageID: c.Ref.MessageID,
		Index:     c.Ref.Index,
		Type:      c.Type,
		Label:     c.Label,
		Icon:      c.Icon,
		Params:    c.Params,
		State:     string(c.State),
		Unknown:   c.Unknown,
	}
}

func mapCards(items []directive.Card) []ActionCardResponse {
	out := make([]ActionCardResponse, 0, len(items))
	for _, c := range items {
		out = append(out, cardResponse(c))
	}
	return out
}

func diffResponse(d reconcile.Diff) RoadmapDiffResponse {
	return RoadmapDiffResponse{
		Title:             d.Proposed.Title,
		Description:       d.Proposed.Description,
		EstimatedDuration: d.Proposed.EstimatedDuration,
		Classification:    string(d.Class),
		MissionID:         d.MissionID,
		Score:             d.Score,
	}
}

func mapDiffs(items []reconcile.Diff) []RoadmapDiffResponse {
	out := make([]RoadmapDiffResponse, 0, len(items))
	for _, d := range items {
		out = append(out, diffResponse(d))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	var payload map[string]any
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    payload,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}
