package domain

type Project struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Title       string  `json:"title"`
	Segment     string  `json:"segment"`
	Status      string  `json:"status" enum:"planned,active,completed"`
	Progress    int     `json:"progress"`
	Description string  `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Mission struct {
	ID                string  `json:"id"`
	OwnerID           string  `json:"owner_id"`
	ProjectID         string  `json:"project_id"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	Status            string  `json:"status" enum:"pending,in_progress,completed"`
	OrderIndex        int     `json:"order_index"`
	Deadline          *string `json:"deadline,omitempty" format:"date-time"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	ProjectID     *string `json:"project_id,omitempty"`
	MissionID     *string `json:"mission_id,omitempty"`
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	Status        string  `json:"status" enum:"todo,doing,done"`
	Priority      string  `json:"priority" enum:"low,medium,high"`
	EstimatedTime int     `json:"estimated_time"`
	TimeSpent     int     `json:"time_spent"`
	DueDate       *string `json:"due_date,omitempty" format:"date-time"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
	CompletedAt   *string `json:"completed_at,omitempty" format:"date-time"`
}

type Transaction struct {
	ID               string  `json:"id"`
	OwnerID          string  `json:"owner_id"`
	Type             string  `json:"type" enum:"income,expense"`
	Amount           float64 `json:"amount"`
	Segment          string  `json:"segment"`
	Description      string  `json:"description,omitempty"`
	Date             string  `json:"date"`
	CountsTowardGoal bool    `json:"counts_toward_goal"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type Note struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Document struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ChatMessage struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Role      string `json:"role" enum:"user,assistant"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerID    string `json:"owner_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
