package store

import "time"

// =============================================================================
// MEMORY
// =============================================================================

// Memory categories.
const (
	CategorySemantic   = "semantic"
	CategoryEpisodic   = "episodic"
	CategoryProcedural = "procedural"
	CategoryDecision   = "decision"
	CategoryPreference = "preference"
)

// ValidMemoryCategories is the closed set accepted by CreateMemory.
var ValidMemoryCategories = map[string]bool{
	CategorySemantic:   true,
	CategoryEpisodic:   true,
	CategoryProcedural: true,
	CategoryDecision:   true,
	CategoryPreference: true,
}

// Memory is a single decaying knowledge-base entry.
type Memory struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	Category     string     `json:"category"`
	Tags         []string   `json:"tags"`
	Importance   float64    `json:"importance"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	AccessCount  int        `json:"access_count"`
	SessionID    string     `json:"session_id,omitempty"`
}

// ArchivedMemory is a memory moved out of the live set by consolidation.
type ArchivedMemory struct {
	Memory
	ArchivedAt    time.Time `json:"archived_at"`
	ArchiveReason string    `json:"archive_reason"`
}

// =============================================================================
// TASKS
// =============================================================================

// Task statuses.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskBlocked    = "blocked"
	TaskDone       = "done"
	TaskCancelled  = "cancelled"
)

// ValidTaskStatuses is the closed status set.
var ValidTaskStatuses = map[string]bool{
	TaskTodo: true, TaskInProgress: true, TaskBlocked: true,
	TaskDone: true, TaskCancelled: true,
}

// ValidTaskPriorities is the closed priority set.
var ValidTaskPriorities = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

// Task is a tracked work item, optionally slotted into the work queue.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	Project       string     `json:"project,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// =============================================================================
// SESSIONS
// =============================================================================

// Session is a work session with decisions and next steps for handoff.
type Session struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	DecisionsMade     []string   `json:"decisions_made,omitempty"`
	NextSteps         []string   `json:"next_steps,omitempty"`
	CheckpointSummary string     `json:"checkpoint_summary,omitempty"`
	CheckpointAt      *time.Time `json:"checkpoint_at,omitempty"`
}

// =============================================================================
// KNOWLEDGE
// =============================================================================

// Knowledge is a titled reference entry with its own vector row.
type Knowledge struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// FORGE (spaced repetition)
// =============================================================================

// Concept difficulties and bloom levels.
var (
	ValidDifficulties = map[string]bool{"beginner": true, "intermediate": true, "advanced": true}
	ValidBloomLevels  = map[string]bool{"remember": true, "understand": true, "apply": true, "analyze": true}
)

// Review outcomes.
const (
	OutcomeUnderstood = "understood"
	OutcomeReviewed   = "reviewed"
	OutcomeStruggled  = "struggled"
	OutcomeSkipped    = "skipped"
)

// ValidOutcomes is the closed review outcome set.
var ValidOutcomes = map[string]bool{
	OutcomeUnderstood: true, OutcomeReviewed: true,
	OutcomeStruggled: true, OutcomeSkipped: true,
}

// Concept is an atomic unit of study.
type Concept struct {
	ID           string     `json:"id"`
	Term         string     `json:"term"`
	Definition   string     `json:"definition"`
	Category     string     `json:"category,omitempty"`
	Difficulty   string     `json:"difficulty"`
	BloomLevel   string     `json:"bloom_level"`
	MasteryLevel float64    `json:"mastery_level"`
	ReviewCount  int        `json:"review_count"`
	CorrectCount int        `json:"correct_count"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	NextReview   *time.Time `json:"next_review,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	SubjectID    string     `json:"subject_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Subject is a container for objectives and concepts (one exam).
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ExamDate  string    `json:"exam_date,omitempty"`
	PassScore float64   `json:"pass_score"`
	CreatedAt time.Time `json:"created_at"`
}

// Objective is a weighted slot in an exam syllabus.
type Objective struct {
	ID         string  `json:"id"`
	SubjectID  string  `json:"subject_id"`
	Code       string  `json:"code"`
	Title      string  `json:"title"`
	Domain     string  `json:"domain,omitempty"`
	ExamWeight float64 `json:"exam_weight"`
}

// Review records one study interaction with a concept.
type Review struct {
	ID         string    `json:"id"`
	ConceptID  string    `json:"concept_id"`
	Outcome    string    `json:"outcome"`
	Confidence int       `json:"confidence"`
	WasCorrect *bool     `json:"was_correct,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	SubjectID  string    `json:"subject_id,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Streak is one day's study totals, keyed on the date.
type Streak struct {
	Date             string `json:"date"` // YYYY-MM-DD
	ConceptsReviewed int    `json:"concepts_reviewed"`
	ConceptsAdded    int    `json:"concepts_added"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

// ErrorPattern records a classified wrong answer.
type ErrorPattern struct {
	ID        string    `json:"id"`
	ConceptID string    `json:"concept_id"`
	ErrorType string    `json:"error_type"` // slip | lapse | mistake | misconception
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// KNOWLEDGE GRAPH
// =============================================================================

// Entity is a typed node in the knowledge graph.
type Entity struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	EntityType  string                 `json:"entity_type"`
	Description string                 `json:"description,omitempty"`
	Aliases     []string               `json:"aliases,omitempty"`
	MemoryIDs   []string               `json:"memory_ids,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Relationship is a typed weighted edge between two entities.
type Relationship struct {
	ID             string                 `json:"id"`
	SourceEntityID string                 `json:"source_entity_id"`
	TargetEntityID string                 `json:"target_entity_id"`
	RelType        string                 `json:"rel_type"`
	Weight         float64                `json:"weight"`
	EvidenceIDs    []string               `json:"evidence_ids,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// =============================================================================
// JOB SEARCH
// =============================================================================

// Application statuses.
var ValidApplicationStatuses = map[string]bool{
	"discovered": true, "preparing": true, "ready": true, "applied": true,
	"interviewing": true, "offered": true, "accepted": true,
	"rejected": true, "withdrawn": true,
}

// JobBoard is a tracked posting source.
type JobBoard struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	BoardType   string     `json:"board_type,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Active      bool       `json:"active"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// JobPosting is one discovered role.
type JobPosting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	URL             string    `json:"url,omitempty"`
	Description     string    `json:"description,omitempty"`
	RequiredSkills  []string  `json:"required_skills,omitempty"`
	PreferredSkills []string  `json:"preferred_skills,omitempty"`
	SalaryMin       int       `json:"salary_min,omitempty"`
	SalaryMax       int       `json:"salary_max,omitempty"`
	WorkMode        string    `json:"work_mode,omitempty"` // remote | hybrid | onsite
	Location        string    `json:"location,omitempty"`
	BoardID         string    `json:"board_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Application tracks one posting through the pipeline.
type Application struct {
	ID              string     `json:"id"`
	PostingID       string     `json:"posting_id"`
	Status          string     `json:"status"`
	ResumePath      string     `json:"resume_path,omitempty"`
	CoverLetterPath string     `json:"cover_letter_path,omitempty"`
	AppliedDate     *time.Time `json:"applied_date,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// InterviewPrep holds prep notes attached to an application.
type InterviewPrep struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Topic         string    `json:"topic"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// =============================================================================
// LIFE DOMAINS
// =============================================================================

// LifeDomain is a life area with a weekly time target.
type LifeDomain struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Priority     int       `json:"priority"`
	HoursPerWeek float64   `json:"hours_per_week"`
	CreatedAt    time.Time `json:"created_at"`
}

// LifeGoal is a goal inside a domain.
type LifeGoal struct {
	ID         string     `json:"id"`
	DomainID   string     `json:"domain_id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Progress   float64    `json:"progress"`
	TargetDate *time.Time `json:"target_date,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// =============================================================================
// PULSE (hook ingest output)
// =============================================================================

// ClaudeSession is one assistant host session tracked by the hook pipeline.
type ClaudeSession struct {
	SessionID     string    `json:"session_id"`
	CWD           string    `json:"cwd"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Status        string    `json:"status"` // active | ended
	Description   string    `json:"description,omitempty"`
	ToolCount     int       `json:"tool_count"`
	LastTool      string    `json:"last_tool,omitempty"`
	LastToolInput string    `json:"last_tool_input,omitempty"`
}

// ActivityEntry is one append-only hook event row.
type ActivityEntry struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	EventType        string    `json:"event_type"`
	ToolName         string    `json:"tool_name,omitempty"`
	ToolInputSummary string    `json:"tool_input_summary,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// =============================================================================
// DAEMON
// =============================================================================

// DaemonState is the single-row daemon liveness record.
type DaemonState struct {
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Modules       []string  `json:"modules"`
	Status        string    `json:"status"` // running | stopped
}

// HeartbeatEntry is one heartbeat check outcome.
type HeartbeatEntry struct {
	ID        int64     `json:"id"`
	CheckName string    `json:"check_name"`
	Triggered bool      `json:"triggered"`
	Message   string    `json:"message,omitempty"`
	Notified  bool      `json:"notified"`
	CheckedAt time.Time `json:"checked_at"`
}

// =============================================================================
// TRASH
// =============================================================================

// TrashEntry is one soft-deleted path in the manifest.
type TrashEntry struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"original_path"`
	TrashPath    string    `json:"trash_path"`
	Category     string    `json:"category"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256,omitempty"`
	IsDir        bool      `json:"is_dir"`
	Reason       string    `json:"reason,omitempty"`
	Auto         bool      `json:"auto"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// =============================================================================
// AUXILIARY
// =============================================================================

// FeedSource is one polled news feed.
type FeedSource struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Name        string     `json:"name,omitempty"`
	Active      bool       `json:"active"`
	LastPolled  *time.Time `json:"last_polled,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
}

// FeedArticle is one article discovered by the feed poll.
type FeedArticle struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// GitShadowSnapshot records one stash hash taken from a dirty repo.
type GitShadowSnapshot struct {
	ID           int64     `json:"id"`
	RepoPath     string    `json:"repo_path"`
	StashHash    string    `json:"stash_hash"`
	ChangedFiles int       `json:"changed_files"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileDeletion is one logged filesystem deletion event.
type FileDeletion struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	EventType string    `json:"event_type"` // file_deleted | dir_deleted
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}
