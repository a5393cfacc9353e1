package domain

import "time"

const Version = 1

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionInProgress TransactionStatus = "IN_PROGRESS"
	TransactionApplied    TransactionStatus = "APPLIED"
	TransactionCommitted  TransactionStatus = "COMMITTED"
	TransactionFailed     TransactionStatus = "FAILED"
	TransactionReverted   TransactionStatus = "REVERTED"
	TransactionHandoff    TransactionStatus = "HANDOFF"
)

type FileChangeType string

const (
	FileModified FileChangeType = "MOD"
	FileAdded    FileChangeType = "ADD"
	FileDeleted  FileChangeType = "DEL"
	FileRenamed  FileChangeType = "REN"
)

type Transaction struct {
	ID        string            `yaml:"id" json:"id"`
	Timestamp time.Time         `yaml:"timestamp" json:"timestamp"`
	Status    TransactionStatus `yaml:"status" json:"status"`
	Hash      string            `yaml:"hash,omitempty" json:"hash,omitempty"`
	Message   string            `yaml:"message" json:"message"`
	Prompt    string            `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Reasoning string            `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
	Files     []FileItem        `yaml:"files" json:"files"`
}

type FileItem struct {
	ID           string         `yaml:"id" json:"id"`
	Path         string         `yaml:"path" json:"path"`
	Type         FileChangeType `yaml:"type" json:"type"`
	LinesAdded   int            `yaml:"lines_added" json:"lines_added"`
	LinesRemoved int            `yaml:"lines_removed" json:"lines_removed"`
	Diff         string         `yaml:"diff,omitempty" json:"diff,omitempty"`
	Strategy     string         `yaml:"strategy,omitempty" json:"strategy,omitempty"`
}

func (t Transaction) FileByID(id string) (FileItem, bool) {
	for _, f := range t.Files {
		if f.ID == id {
			return f, true
		}
	}
	return FileItem{}, false
}

func (t Transaction) LineStats() (added int, removed int) {
	for _, f := range t.Files {
		added += f.LinesAdded
		removed += f.LinesRemoved
	}
	return added, removed
}

type ConfigFile struct {
	Version  int            `yaml:"version"`
	UI       UIConfig       `yaml:"ui"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
	Fixtures FixturesConfig `yaml:"fixtures"`
}

type UIConfig struct {
	FlashMillis         int                    `yaml:"flash_millis"`
	NotificationSeconds int                    `yaml:"notification_seconds"`
	Reservations        map[string]Reservation `yaml:"reservations,omitempty"`
}

// Reservation is the number of terminal rows a screen keeps for chrome
// around its scrolling list.
type Reservation struct {
	Header     int `yaml:"header"`
	Footer     int `yaml:"footer"`
	Separators int `yaml:"separators"`
	Margin     int `yaml:"margin"`
}

type PipelineConfig struct {
	StepDelayMillis int    `yaml:"step_delay_millis"`
	PostCommand     string `yaml:"post_command,omitempty"`
	Linter          string `yaml:"linter,omitempty"`
	Scenario        string `yaml:"scenario,omitempty"`
}

type LogConfig struct {
	Capacity int    `yaml:"capacity"`
	Level    string `yaml:"level"`
}

type FixturesConfig struct {
	Path  string `yaml:"path,omitempty"`
	Watch bool   `yaml:"watch"`
}

type FixturesFile struct {
	Version      int           `yaml:"version"`
	Transactions []Transaction `yaml:"transactions"`
}
