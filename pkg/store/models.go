package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Memory table discriminators.
const (
	TableMessages  = "messages"
	TableFacts     = "facts"
	TableKnowledge = "knowledge"
)

// UserState is the per-(room, participant) tri-state. Empty means unset.
type UserState string

const (
	StateFollowed UserState = "FOLLOWED"
	StateMuted    UserState = "MUTED"
)

// GoalStatus tracks the lifecycle of a goal.
type GoalStatus string

const (
	GoalInProgress GoalStatus = "IN_PROGRESS"
	GoalDone       GoalStatus = "DONE"
	GoalFailed     GoalStatus = "FAILED"
)

// Attachment is a media reference carried inside message content.
type Attachment struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Source      string `json:"source,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Content is the structured payload of a memory record.
type Content struct {
	Text        string       `json:"text"`
	Action      string       `json:"action,omitempty"`
	Source      string       `json:"source,omitempty"`
	InReplyTo   string       `json:"inReplyTo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Chunk linkage for knowledge documents split across records.
	ParentID   string `json:"parentId,omitempty"`
	ChunkIndex int    `json:"chunkIndex,omitempty"`
}

// Memory is a timestamped record in one of the named tables. Records are
// immutable: they are created and deleted, never updated in place.
type Memory struct {
	ID        string    `gorm:"primaryKey"`
	Type      string    `gorm:"column:type;index:idx_memories_type_room"`
	RoomID    string    `gorm:"index:idx_memories_type_room;index"`
	UserID    string    `gorm:"index"`
	AgentID   string    `gorm:"index"`
	Content   Content   `gorm:"serializer:json"`
	Unique    bool      `gorm:"column:unique_flag"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName keeps all memory families in one physical table; Type
// discriminates the logical table.
func (Memory) TableName() string { return "memories" }

// ContentAddressedID derives a stable id from the memory's identity so
// unique records deduplicate on insert.
func ContentAddressedID(typ, roomID, userID, text string) string {
	sum := sha256.Sum256([]byte(typ + "\x00" + roomID + "\x00" + userID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Objective is a single step inside a goal.
type Objective struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Goal is a tracked objective scoped to a room and optionally a user.
type Goal struct {
	ID         string      `gorm:"primaryKey"`
	RoomID     string      `gorm:"index"`
	UserID     string      `gorm:"index"`
	Name       string
	Status     GoalStatus  `gorm:"index"`
	Objectives []Objective `gorm:"serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Goal) TableName() string { return "goals" }

// Account is a known user or agent identity.
type Account struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Username  string
	Details   map[string]interface{} `gorm:"serializer:json"`
	CreatedAt time.Time
}

func (Account) TableName() string { return "accounts" }

// Room is a conversation scope.
type Room struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (Room) TableName() string { return "rooms" }

// Participant links an account to a room with an optional tri-state.
type Participant struct {
	ID        string    `gorm:"primaryKey"`
	RoomID    string    `gorm:"uniqueIndex:idx_participants_room_user"`
	UserID    string    `gorm:"uniqueIndex:idx_participants_room_user"`
	UserState UserState `gorm:"column:user_state"`
	CreatedAt time.Time
}

func (Participant) TableName() string { return "participants" }

// Relationship records that two identities have interacted.
type Relationship struct {
	ID        string `gorm:"primaryKey"`
	UserA     string `gorm:"uniqueIndex:idx_relationships_pair"`
	UserB     string `gorm:"uniqueIndex:idx_relationships_pair"`
	RoomID    string
	Status    string
	CreatedAt time.Time
}

func (Relationship) TableName() string { return "relationships" }

// CacheEntry is the generic key/value cache table, keyed by (key, agent id).
type CacheEntry struct {
	Key       string `gorm:"primaryKey"`
	AgentID   string `gorm:"primaryKey"`
	Value     []byte
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (CacheEntry) TableName() string { return "cache" }
